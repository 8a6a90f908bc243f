package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// userSelectFields is the canonical column list for scanning users.
const userSelectFields = `id, email, name, password_hash, role, is_active, created_at, updated_at`

// UserService manages operator accounts.
type UserService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(db *sql.DB, logger *observability.Logger) *UserService {
	if db == nil {
		panic("NewUserService: db is nil")
	}
	if logger == nil {
		panic("NewUserService: logger is nil")
	}
	return &UserService{db: db, logger: logger}
}

func scanUserFromRow(row interface {
	Scan(dest ...interface{}) error
}) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthenticateUser verifies the email/password pair and returns the account.
// Inactive accounts fail the same way missing ones do to avoid leaking state.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user")
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			return nil, contextutils.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID fetches an account by ID.
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id",
		observability.AttributeUserID(id),
	)
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx, `SELECT `+userSelectFields+` FROM users WHERE id=$1`, id)
	user, err := scanUserFromRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to scan user")
	}
	return user, nil
}

// GetUserByEmail fetches an account by email, case-insensitively.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_email")
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userSelectFields+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
	user, err := scanUserFromRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to scan user")
	}
	return user, nil
}

// CreateUser creates an operator account with a bcrypt-hashed password.
func (s *UserService) CreateUser(ctx context.Context, email, name, password, role string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		attribute.String("user.role", role),
	)
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	if !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid email: %s", email)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "display name is required")
	}
	if len(password) < config.MinPasswordLength {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least %d characters", config.MinPasswordLength)
	}
	if !models.IsValidRole(role) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid role: %s", role)
	}

	if _, lookupErr := s.GetUserByEmail(ctx, email); lookupErr == nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordExists, "user %s already exists", email)
	} else if !contextutils.IsError(lookupErr, contextutils.ErrRecordNotFound) {
		return nil, lookupErr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	now := time.Now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, password_hash, role, is_active, created_at, updated_at)
         VALUES ($1,$2,$3,$4,TRUE,$5,$6) RETURNING `+userSelectFields,
		email, name, string(hash), role, now, now)
	user, err := scanUserFromRow(row)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert user")
	}

	s.logger.Info(ctx, "User created", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, nil
}

// ListUsers returns all operator accounts ordered by creation time.
func (s *UserService) ListUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+userSelectFields+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []models.User{}
	for rows.Next() {
		user, scanErr := scanUserFromRow(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "scan user list")
		}
		list = append(list, *user)
	}
	return list, nil
}

// SetUserActive toggles whether an account may sign in.
func (s *UserService) SetUserActive(ctx context.Context, id int, active bool) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "set_user_active",
		observability.AttributeUserID(id),
		attribute.Bool("user.active", active),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active=$1, updated_at=$2 WHERE id=$3`, active, time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to update user")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %d not found", id)
	}
	return nil
}

// UpdateUserPassword replaces the stored password hash for an account.
func (s *UserService) UpdateUserPassword(ctx context.Context, id int, password string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password",
		observability.AttributeUserID(id),
	)
	defer observability.FinishSpan(span, &err)

	if len(password) < config.MinPasswordLength {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "password must be at least %d characters", config.MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$1, updated_at=$2 WHERE id=$3`, string(hash), time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %d not found", id)
	}
	return nil
}

// DeleteUser removes an operator account.
func (s *UserService) DeleteUser(ctx context.Context, id int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "delete_user",
		observability.AttributeUserID(id),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete user")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %d not found", id)
	}
	return nil
}

// EnsureDefaultUsers seeds one account per role when the users table is empty.
// Seed passwords follow "changeme-<role>" and must be rotated by operators.
func (s *UserService) EnsureDefaultUsers(ctx context.Context, domain string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_default_users")
	defer observability.FinishSpan(span, &err)

	var count int
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return contextutils.WrapError(err, "failed to count users")
	}
	if count > 0 {
		return nil
	}

	if domain == "" {
		domain = "example.com"
	}

	seedNames := map[string]string{
		models.RoleAdmin:   "Administrator",
		models.RoleFounder: "Founder",
		models.RoleCEO:     "CEO",
	}
	for _, role := range models.ValidRoles {
		email := role + "@" + domain
		if _, createErr := s.CreateUser(ctx, email, seedNames[role], "changeme-"+role, role); createErr != nil {
			return contextutils.WrapErrorf(createErr, "failed to seed %s account", role)
		}
	}

	s.logger.Warn(ctx, "Seeded default operator accounts; rotate their passwords", map[string]interface{}{
		"domain": domain,
	})
	return nil
}
