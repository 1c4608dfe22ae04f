package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Users is the credential store. Reads that feed credential checks include
// the password hash; API-facing code never serializes it.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByConfirmEmailTokenHash(ctx context.Context, hash string) (*User, error)
	GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*User, error)

	Save(ctx context.Context, user *User, validate bool) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, user *User, validate bool) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the bun-backed credential store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx creates the record with IsEmailConfirmed forced off and maps
// unique constraint violations to the duplicate-key error.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if err := validateUserRecord(user); err != nil {
		return nil, err
	}

	prepareUserDefaults(user)
	user.IsEmailConfirmed = false

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx resolves a user by email or phone. The password hash
// column is part of the model and comes back with the record so callers
// can verify credentials.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound()
}

// GetByConfirmEmailTokenHash finds the unconfirmed user holding the given
// outstanding confirmation token hash.
func (a *users) GetByConfirmEmailTokenHash(ctx context.Context, hash string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.confirm_email_token_hash = ?", hash).
		Where("?TableAlias.is_email_confirmed = ?", false).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByResetTokenHash finds the user holding the given reset token hash
// with an expiry strictly after now. Expired tokens surface as not found,
// indistinguishable from unknown ones.
func (a *users) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.reset_password_token_hash = ?", hash).
		Where("?TableAlias.reset_password_expires_at > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) Save(ctx context.Context, user *User, validate bool) (*User, error) {
	return a.SaveTx(ctx, a.db, user, validate)
}

// SaveTx persists mutations on an existing record. validate=false is for
// token and flag changes only, so those writes do not re-trigger full
// record validation.
func (a *users) SaveTx(ctx context.Context, tx bun.IDB, user *User, validate bool) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, goerrors.New("cannot save a user without an id", goerrors.CategoryBadInput)
	}

	if validate {
		if err := validateUserRecord(user); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	user.UpdatedAt = &now

	_, err := tx.NewUpdate().Model(user).
		WherePK().
		Exec(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}

	return user, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.Phone = NormalizePhone(record.Phone)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func validateUserRecord(record *User) error {
	if record == nil {
		return goerrors.New("user record is required", goerrors.CategoryBadInput)
	}

	if !isEmail(strings.TrimSpace(record.Email)) {
		return goerrors.New("Please provide a valid email", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if strings.TrimSpace(record.Phone) == "" {
		return goerrors.New("Please provide a phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if record.PasswordHash == "" {
		return goerrors.New("user record is missing a password hash", goerrors.CategoryInternal)
	}

	return nil
}

type identifierOption struct {
	column string
	value  string
}

// resolveUserIdentifier maps a login identifier to candidate columns. A
// phone identifier is tried verbatim and, when parseable, in E.164 form so
// formatted input still resolves to the stored number.
func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if _, err := uuid.Parse(trimmed); err == nil {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
		return options
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  strings.ToLower(trimmed),
		})
		return options
	}

	options = append(options, identifierOption{
		column: "phone",
		value:  trimmed,
	})

	if normalized := NormalizePhone(trimmed); normalized != trimmed {
		options = append(options, identifierOption{
			column: "phone",
			value:  normalized,
		})
	}

	return options
}

// NormalizePhone returns the E.164 form when the input parses as a valid
// number, otherwise the trimmed input unchanged. Short legacy identifiers
// are stored and matched verbatim.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	parsed, err := phonenumbers.Parse(trimmed, "US")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return trimmed
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func isEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
