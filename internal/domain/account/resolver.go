package account

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultAccountName is the account that receives payments no other rule claims.
const DefaultAccountName = "default"

// Resolver attributes a newly observed payment memo to a local account.
type Resolver struct {
	repo        Repository
	pattern     *regexp.Regexp
	defaultName string
}

// NewResolver creates a resolver. pattern may be nil; when set it must have
// exactly one capture group, which is matched against account names.
func NewResolver(repo Repository, pattern *regexp.Regexp, defaultName string) (*Resolver, error) {
	if pattern != nil && pattern.NumSubexp() != 1 {
		return nil, ErrInvalidPattern
	}
	if defaultName == "" {
		defaultName = DefaultAccountName
	}
	return &Resolver{repo: repo, pattern: pattern, defaultName: defaultName}, nil
}

// CompilePattern compiles a memo pattern and checks it has one capture group.
// An empty expression yields a nil pattern.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() != 1 {
		return nil, ErrInvalidPattern
	}
	return re, nil
}

// Resolve returns the ID of the account memo belongs to. Rules, first match wins:
// the configured pattern's capture group as an exact account name, then the
// first account whose name appears in memo ignoring case, then the default
// account (created on first use). ok is false only when the default account
// cannot be obtained. Store errors are logged and never returned.
func (r *Resolver) Resolve(ctx context.Context, memo string) (string, bool) {
	if id, ok := r.byPattern(ctx, memo); ok {
		return id, true
	}

	if id, ok := r.byNameSubstring(ctx, memo); ok {
		return id, true
	}

	id, err := r.defaultAccountID(ctx)
	if err != nil {
		log.Printf("Resolver: failed to obtain default account %q: %v", r.defaultName, err)
		return "", false
	}
	return id, true
}

func (r *Resolver) byPattern(ctx context.Context, memo string) (string, bool) {
	if r.pattern == nil {
		return "", false
	}

	match := r.pattern.FindStringSubmatch(memo)
	if len(match) != 2 || match[1] == "" {
		return "", false
	}

	acc, err := r.repo.GetByName(ctx, match[1])
	if err != nil {
		log.Printf("Resolver: lookup of account %q failed: %v", match[1], err)
		return "", false
	}
	if acc == nil {
		return "", false
	}
	return acc.ID, true
}

func (r *Resolver) byNameSubstring(ctx context.Context, memo string) (string, bool) {
	if memo == "" {
		return "", false
	}

	accounts, err := r.repo.ListAll(ctx)
	if err != nil {
		log.Printf("Resolver: failed to list accounts: %v", err)
		return "", false
	}

	lowerMemo := strings.ToLower(memo)
	for _, acc := range accounts {
		if acc.Name == "" {
			continue
		}
		if strings.Contains(lowerMemo, strings.ToLower(acc.Name)) {
			return acc.ID, true
		}
	}
	return "", false
}

// defaultAccountID returns the default account, creating it if needed. A
// concurrent creator winning the unique-name race is resolved by re-reading.
func (r *Resolver) defaultAccountID(ctx context.Context) (string, error) {
	acc, err := r.repo.GetByName(ctx, r.defaultName)
	if err != nil {
		return "", err
	}
	if acc != nil {
		return acc.ID, nil
	}

	description := "Receives payments that match no other account"
	acc, err = r.repo.Create(ctx, CreateParams{
		ID:          uuid.NewString(),
		Name:        r.defaultName,
		Description: &description,
	})
	if err == nil {
		log.Printf("Resolver: created default account %q (%s)", acc.Name, acc.ID)
		return acc.ID, nil
	}
	if !errors.Is(err, ErrNameTaken) {
		return "", err
	}

	acc, err = r.repo.GetByName(ctx, r.defaultName)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", ErrAccountNotFound
	}
	return acc.ID, nil
}
