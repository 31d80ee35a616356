package repositories

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/you/medrecsvc/domain"
)

const defaultCreateRetries = 3

// NewAccountID builds an ID of the form <prefix><unix seconds><4 random digits>
func NewAccountID(role domain.Role, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate account id: %w", err)
	}
	return fmt.Sprintf("%s%d%04d", role.IDPrefix(), now.Unix(), n.Int64()), nil
}

type existenceChecker interface {
	ExistsByEmail(ctx context.Context, role domain.Role, email string) (bool, error)
	ExistsByUsername(ctx context.Context, role domain.Role, username string) (bool, error)
	ExistsByMobile(ctx context.Context, role domain.Role, mobile string) (bool, error)
}

// createAccount assigns a fresh ID and inserts the account, retrying when the ID is already
// taken or the store fails transiently. Uniqueness conflicts on email, username or mobile are
// returned at once.
func createAccount(
	ctx context.Context,
	store existenceChecker,
	account *domain.Account,
	retries int,
	insert func(context.Context, *domain.Account) error,
	isDuplicate func(error) bool,
) (string, error) {
	if !account.Role.Valid() {
		return "", domain.ErrInvalidRole
	}
	if retries <= 0 {
		retries = defaultCreateRetries
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	id, err := backoff.Retry(ctx, func() (string, error) {
		id, err := NewAccountID(account.Role, time.Now())
		if err != nil {
			return "", backoff.Permanent(err)
		}
		account.ID = id

		err = insert(ctx, account)
		if err == nil {
			return id, nil
		}
		if !isDuplicate(err) {
			return "", fmt.Errorf("failed to insert account: %w", err)
		}

		conflict, checkErr := duplicateField(ctx, store, account)
		if checkErr != nil {
			return "", backoff.Permanent(checkErr)
		}
		if conflict != nil {
			return "", backoff.Permanent(conflict)
		}
		return "", fmt.Errorf("account id %s already taken: %w", id, err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(retries)))

	if err != nil {
		account.ID = ""
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return "", err
	}
	return id, nil
}

// duplicateField names the unique field an account collides on, if any
func duplicateField(ctx context.Context, store existenceChecker, account *domain.Account) (error, error) {
	checks := []struct {
		exists func(context.Context, domain.Role, string) (bool, error)
		value  string
		err    error
	}{
		{store.ExistsByEmail, account.Email, domain.ErrDuplicateEmail},
		{store.ExistsByUsername, account.Username, domain.ErrDuplicateUsername},
		{store.ExistsByMobile, account.Mobile, domain.ErrDuplicateMobile},
	}
	for _, c := range checks {
		found, err := c.exists(ctx, account.Role, c.value)
		if err != nil {
			return nil, err
		}
		if found {
			return c.err, nil
		}
	}
	return nil, nil
}
