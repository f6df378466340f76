package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

const createUserTables = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	image_key TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_infos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zip TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS hosts (
	user_id INTEGER PRIMARY KEY,
	bio TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS renters (
	user_id INTEGER PRIMARY KEY,
	bio TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

const selectUser = `
SELECT u.id, u.username, u.name, u.email, u.image_key, u.password_hash, u.created_at, u.updated_at,
	c.user_id, c.phone, c.address, c.city, c.state, c.zip, c.country,
	h.user_id, h.bio, h.created_at,
	r.user_id, r.bio, r.created_at
FROM users u
LEFT JOIN contact_infos c ON c.user_id = u.id
LEFT JOIN hosts h ON h.user_id = u.id
LEFT JOIN renters r ON r.user_id = u.id
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUserTables); err != nil {
		return fmt.Errorf("create user tables: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO users (username, name, email, image_key, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Name,
		user.Email,
		user.ImageKey,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user already exists: %w", repository.ErrUsernameTaken)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}

	if user.Contact != nil && !user.Contact.IsEmpty() {
		if err := upsertContact(ctx, tx, id, *user.Contact); err != nil {
			return 0, err
		}
	}
	if user.Host != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO hosts (user_id, bio, created_at) VALUES (?, ?, ?)`, id, user.Host.Bio, now); err != nil {
			return 0, fmt.Errorf("insert host: %w", err)
		}
		user.Host.UserID, user.Host.CreatedAt = id, now
	}
	if user.Renter != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO renters (user_id, bio, created_at) VALUES (?, ?, ?)`, id, user.Renter.Bio, now); err != nil {
			return 0, fmt.Errorf("insert renter: %w", err)
		}
		user.Renter.UserID, user.Renter.CreatedAt = id, now
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit user create: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE u.id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE u.username = ?`, username)
	return scanUser(row)
}

func (r *UserRepository) ApplyProfileUpdate(ctx context.Context, update domain.ProfileUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	query := `UPDATE users SET name=?, username=?, updated_at=?`
	args := []any{update.Name, update.Username, time.Now().UTC()}
	if update.PasswordHash != nil {
		query += `, password_hash=?`
		args = append(args, *update.PasswordHash)
	}
	query += ` WHERE id=?`
	args = append(args, update.UserID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}

	if update.Contact.IsEmpty() {
		// never create an empty contact record, but clear an existing one
		if _, err := tx.ExecContext(ctx, `
UPDATE contact_infos
SET phone='', address='', city='', state='', zip='', country=''
WHERE user_id=?`, update.UserID); err != nil {
			return fmt.Errorf("clear contact info: %w", err)
		}
	} else if err := upsertContact(ctx, tx, update.UserID, update.Contact); err != nil {
		return err
	}

	if update.HostBio != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE hosts SET bio=? WHERE user_id=?`, *update.HostBio, update.UserID); err != nil {
			return fmt.Errorf("update host bio: %w", err)
		}
	}
	if update.RenterBio != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE renters SET bio=? WHERE user_id=?`, *update.RenterBio, update.UserID); err != nil {
			return fmt.Errorf("update renter bio: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profile update: %w", err)
	}
	return nil
}

func (r *UserRepository) EnsureCapability(ctx context.Context, userID int64, capability domain.Capability) (bool, error) {
	var table string
	switch capability {
	case domain.CapabilityHost:
		table = "hosts"
	case domain.CapabilityRenter:
		table = "renters"
	default:
		return false, fmt.Errorf("unknown capability %q", capability)
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (user_id, bio, created_at)
VALUES (?, '', ?)
ON CONFLICT(user_id) DO NOTHING`, table),
		userID,
		time.Now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, repository.ErrNotFound
		}
		return false, fmt.Errorf("insert %s: %w", capability, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", capability, err)
	}
	return aff > 0, nil
}

func (r *UserRepository) SetImageKey(ctx context.Context, userID int64, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET image_key=?, updated_at=? WHERE id=?`, key, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update image key: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("image key rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func upsertContact(ctx context.Context, tx *sql.Tx, userID int64, c domain.ContactInfo) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO contact_infos (user_id, phone, address, city, state, zip, country)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	phone=excluded.phone,
	address=excluded.address,
	city=excluded.city,
	state=excluded.state,
	zip=excluded.zip,
	country=excluded.country`,
		userID,
		c.Phone,
		c.Address,
		c.City,
		c.State,
		c.Zip,
		c.Country,
	)
	if err != nil {
		return fmt.Errorf("upsert contact info: %w", err)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user          domain.User
		contactUserID sql.NullInt64
		phone         sql.NullString
		address       sql.NullString
		city          sql.NullString
		state         sql.NullString
		zip           sql.NullString
		country       sql.NullString
		hostUserID    sql.NullInt64
		hostBio       sql.NullString
		hostCreated   sql.NullTime
		renterUserID  sql.NullInt64
		renterBio     sql.NullString
		renterCreated sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&user.ImageKey,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&contactUserID, &phone, &address, &city, &state, &zip, &country,
		&hostUserID, &hostBio, &hostCreated,
		&renterUserID, &renterBio, &renterCreated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if contactUserID.Valid {
		user.Contact = &domain.ContactInfo{
			Phone:   phone.String,
			Address: address.String,
			City:    city.String,
			State:   state.String,
			Zip:     zip.String,
			Country: country.String,
		}
	}
	if hostUserID.Valid {
		user.Host = &domain.Host{UserID: hostUserID.Int64, Bio: hostBio.String, CreatedAt: hostCreated.Time}
	}
	if renterUserID.Valid {
		user.Renter = &domain.Renter{UserID: renterUserID.Int64, Bio: renterBio.String, CreatedAt: renterCreated.Time}
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}
