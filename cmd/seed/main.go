package main

import (
	"context"
	"errors"
	"flag"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"rocket-rental/internal/config"
	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
	"rocket-rental/internal/repository/sqlite"
	"rocket-rental/internal/service"
	"rocket-rental/internal/storage"
)

func strPtr(s string) *string { return &s }

var demoUsers = []service.NewUser{
	{
		Username: "alice",
		Name:     "Alice Liddell",
		Email:    "alice@example.com",
		Password: "rocket-demo-alice",
		Contact: &domain.ContactInfo{
			Phone:   "+44 1865 000000",
			Address: "1 Rabbit Hole",
			City:    "Oxford",
			Country: "UK",
		},
		HostBio: strPtr("Three refurbished sounding rockets, launch pad included."),
	},
	{
		Username:  "bob",
		Name:      "Bob Goddard",
		Email:     "bob@example.com",
		Password:  "rocket-demo-bob",
		RenterBio: strPtr("Amateur payload builder looking for weekend launches."),
	},
	{
		Username:  "carol",
		Name:      "Carol Tsiolkovsky",
		Email:     "carol@example.com",
		Password:  "rocket-demo-carol",
		HostBio:   strPtr("Liquid-fuel specialist."),
		RenterBio: strPtr("Occasionally rents boosters for tests."),
	},
	{
		Username: "dave",
		Name:     "Dave",
		Email:    "dave@example.com",
	},
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

func main() {
	imagesDir := flag.String("images", "", "Directory of <username>.<ext> profile images to upload")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	users := service.NewUserService(userRepo)

	for _, demo := range demoUsers {
		created, err := users.Create(ctx, demo)
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			logger.Infof("user %s already exists, skipping", demo.Username)
		case err != nil:
			logger.Fatalf("create user %s: %v", demo.Username, err)
		default:
			logger.WithField("user_id", created.ID).Infof("created user %s", created.Username)
		}
	}

	if *imagesDir == "" {
		return
	}
	if cfg.Storage.Bucket == "" {
		logger.Fatalf("storage bucket is required to upload images")
	}
	store, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}
	if err := uploadImages(ctx, store, userRepo, users, *imagesDir, cfg.Storage.KeyPrefix, logger); err != nil {
		logger.Fatalf("upload images: %v", err)
	}
}

func uploadImages(ctx context.Context, store storage.Service, repo repository.UserRepository, users service.UserService, dir, prefix string, logger *logrus.Logger) error {
	known := make(map[string]bool, len(demoUsers))
	for _, demo := range demoUsers {
		known[demo.Username] = true
	}

	uploaded, err := store.UploadDirectory(ctx, dir, storage.UploadOptions{
		KeyPrefix: prefix,
		Filter: func(rel string) bool {
			return !strings.Contains(rel, "/") && known[usernameFromFile(rel)] && imageExts[strings.ToLower(path.Ext(rel))]
		},
		ProgressCallback: func(done, total int64) {
			logger.Debugf("uploaded %d/%d bytes", done, total)
		},
	})
	if err != nil {
		return err
	}

	for _, obj := range uploaded {
		username := usernameFromFile(obj.Rel)
		user, err := repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if err := users.SetImageKey(ctx, user.ID, obj.Key); err != nil {
			return err
		}
		if user.ImageKey != "" && user.ImageKey != obj.Key {
			if err := store.DeleteObject(ctx, user.ImageKey); err != nil {
				logger.Warnf("remove previous image %s: %v", user.ImageKey, err)
			}
		}
		logger.WithField("user_id", user.ID).Infof("profile image for %s stored at %s", username, obj.Key)
	}
	return nil
}

func usernameFromFile(rel string) string {
	return strings.TrimSuffix(rel, path.Ext(rel))
}
