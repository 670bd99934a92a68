package collaborator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"crmflow/auth"
	"crmflow/policy"
	"crmflow/test/pgxtest"
)

var (
	gestionActor    = auth.Actor{UserID: "ges-1", Role: auth.RoleGestion, EmployeeNumber: "G001"}
	commercialActor = auth.Actor{UserID: "com-1", Role: auth.RoleCommercial, EmployeeNumber: "C001"}
	supportActor    = auth.Actor{UserID: "sup-1", Role: auth.RoleSupport, EmployeeNumber: "S001"}
)

func newFixture() (*Service, *pgxtest.FakePool, *fakeRepo) {
	pool := &pgxtest.FakePool{}
	repo := newFakeRepo()
	nextID := 0
	svc := NewService(pool, repo).WithIDGenerator(func() string {
		nextID++
		return fmt.Sprintf("collab-%d", nextID)
	})
	return svc, pool, repo
}

func validParams(role auth.Role) CreateParams {
	return CreateParams{
		FirstName: "Alice",
		LastName:  "Martin",
		Email:     fmt.Sprintf("alice+%s@example.com", role),
		Password:  "longenoughpassword",
		Role:      role,
	}
}

func TestCreate_AutoNumbering(t *testing.T) {
	svc, pool, _ := newFixture()
	ctx := context.Background()

	first, err := svc.Create(ctx, gestionActor, validParams(auth.RoleGestion))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.EmployeeNumber != "G001" {
		t.Fatalf("expected first gestion hire to be G001, got %q", first.EmployeeNumber)
	}
	if pool.Tx == nil || !pool.Tx.Committed {
		t.Fatal("expected creation to commit its transaction")
	}

	params := validParams(auth.RoleGestion)
	params.Email = "bob@example.com"
	second, err := svc.Create(ctx, gestionActor, params)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.EmployeeNumber != "G002" {
		t.Fatalf("expected second gestion hire to be G002, got %q", second.EmployeeNumber)
	}

	params = validParams(auth.RoleCommercial)
	params.Email = "carol@example.com"
	third, err := svc.Create(ctx, gestionActor, params)
	if err != nil {
		t.Fatalf("create commercial: %v", err)
	}
	if third.EmployeeNumber != "C001" {
		t.Fatalf("expected commercial sequence independent of gestion, got %q", third.EmployeeNumber)
	}

	if !strings.HasPrefix(first.PasswordHash, "$argon2id$") {
		t.Fatalf("expected stored hash in argon2id format, got %q", first.PasswordHash)
	}
}

func TestCreate_ExplicitEmployeeNumber(t *testing.T) {
	svc, _, repo := newFixture()

	params := validParams(auth.RoleSupport)
	params.EmployeeNumber = "S042"
	created, err := svc.Create(context.Background(), gestionActor, params)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.EmployeeNumber != "S042" {
		t.Fatalf("expected explicit number to be kept, got %q", created.EmployeeNumber)
	}
	if repo.allocations != 0 {
		t.Fatalf("expected no sequence allocation, got %d", repo.allocations)
	}
}

func TestCreate_Denied(t *testing.T) {
	svc, pool, repo := newFixture()
	ctx := context.Background()

	for _, actor := range []auth.Actor{commercialActor, supportActor} {
		_, err := svc.Create(ctx, actor, validParams(auth.RoleSupport))
		var denied *policy.DeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("%s: expected DeniedError, got %v", actor.Role, err)
		}
	}

	if _, err := svc.Create(ctx, auth.Actor{}, validParams(auth.RoleSupport)); !errors.Is(err, policy.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	if pool.Tx != nil {
		t.Fatal("expected no transaction for denied creations")
	}
	if len(repo.byID) != 0 {
		t.Fatal("expected no mutation for denied creations")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	params := validParams(auth.RoleSupport)
	params.Password = "short"
	if _, err := svc.Create(ctx, gestionActor, params); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	params = validParams(auth.RoleSupport)
	params.Role = "director"
	if _, err := svc.Create(ctx, gestionActor, params); err == nil {
		t.Fatal("expected invalid role to be rejected")
	}

	params = validParams(auth.RoleSupport)
	params.Email = ""
	if _, err := svc.Create(ctx, gestionActor, params); err == nil {
		t.Fatal("expected missing email to be rejected")
	}
}

func TestCreate_DuplicateEmailRollsBack(t *testing.T) {
	svc, pool, _ := newFixture()
	ctx := context.Background()

	if _, err := svc.Create(ctx, gestionActor, validParams(auth.RoleGestion)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := svc.Create(ctx, gestionActor, validParams(auth.RoleGestion)); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if pool.Tx.Committed {
		t.Fatal("expected failed creation not to commit")
	}
	if !pool.Tx.Rolled {
		t.Fatal("expected failed creation to roll back")
	}
}

func TestUpdate(t *testing.T) {
	svc, pool, repo := newFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, gestionActor, validParams(auth.RoleSupport))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Alicia"
	newRole := auth.RoleCommercial
	updated, err := svc.Update(ctx, gestionActor, created.ID, UpdateParams{
		FirstName: &newName,
		Role:      &newRole,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != "Alicia" || updated.Role != auth.RoleCommercial {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.LastName != created.LastName {
		t.Fatal("fields not named in params must not change")
	}
	if !pool.Tx.Committed {
		t.Fatal("expected update to commit")
	}

	if _, err := svc.Update(ctx, commercialActor, created.ID, UpdateParams{FirstName: &newName}); !errors.Is(err, policy.ErrDenied) {
		t.Fatalf("expected commercial update to be denied, got %v", err)
	}
	if repo.byID[created.ID].FirstName != "Alicia" {
		t.Fatal("denied update must not mutate")
	}

	if _, err := svc.Update(ctx, gestionActor, "missing", UpdateParams{FirstName: &newName}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := svc.Update(ctx, gestionActor, created.ID, UpdateParams{}); err == nil {
		t.Fatal("expected empty update to be rejected")
	}
}

func TestUpdate_PasswordRehash(t *testing.T) {
	svc, _, repo := newFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, gestionActor, validParams(auth.RoleSupport))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newPassword := "another-long-password"
	if _, err := svc.Update(ctx, gestionActor, created.ID, UpdateParams{Password: &newPassword}); err != nil {
		t.Fatalf("update: %v", err)
	}

	ok, err := auth.VerifyPassword(repo.byID[created.ID].PasswordHash, newPassword)
	if err != nil || !ok {
		t.Fatalf("expected new password to verify, ok=%t err=%v", ok, err)
	}

	weak := "short"
	if _, err := svc.Update(ctx, gestionActor, created.ID, UpdateParams{Password: &weak}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, pool, repo := newFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, gestionActor, validParams(auth.RoleSupport))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, supportActor, created.ID); !errors.Is(err, policy.ErrDenied) {
		t.Fatalf("expected support delete to be denied, got %v", err)
	}
	if _, ok := repo.byID[created.ID]; !ok {
		t.Fatal("denied delete must not mutate")
	}

	if err := svc.Delete(ctx, gestionActor, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !pool.Tx.Committed {
		t.Fatal("expected delete to commit")
	}
	if err := svc.Delete(ctx, gestionActor, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListAndLookup(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, gestionActor, validParams(auth.RoleCommercial))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := svc.List(ctx, gestionActor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].ID != created.ID {
		t.Fatalf("unexpected listing %+v", all)
	}

	if _, err := svc.List(ctx, commercialActor); !errors.Is(err, policy.ErrDenied) {
		t.Fatalf("expected commercial listing to be denied, got %v", err)
	}

	found, err := svc.GetByEmployeeNumber(ctx, gestionActor, created.EmployeeNumber)
	if err != nil {
		t.Fatalf("get by employee number: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %q, got %q", created.ID, found.ID)
	}

	if _, err := svc.GetByEmployeeNumber(ctx, supportActor, created.EmployeeNumber); !errors.Is(err, policy.ErrDenied) {
		t.Fatalf("expected support lookup to be denied, got %v", err)
	}
}

type fakeRepo struct {
	byID        map[string]auth.Collaborator
	counters    map[string]int
	allocations int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:     make(map[string]auth.Collaborator),
		counters: make(map[string]int),
	}
}

func (f *fakeRepo) AllocateEmployeeNumber(ctx context.Context, tx pgx.Tx, role auth.Role) (string, error) {
	f.allocations++
	prefix := role.Initial()
	f.counters[prefix]++
	return fmt.Sprintf("%s%03d", prefix, f.counters[prefix]), nil
}

func (f *fakeRepo) Create(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error) {
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, c.Email) {
			return auth.Collaborator{}, ErrDuplicateEmail
		}
		if existing.EmployeeNumber == c.EmployeeNumber {
			return auth.Collaborator{}, ErrDuplicateEmployeeNumber
		}
	}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (auth.Collaborator, error) {
	c, ok := f.byID[id]
	if !ok {
		return auth.Collaborator{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) Update(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error) {
	if _, ok := f.byID[c.ID]; !ok {
		return auth.Collaborator{}, ErrNotFound
	}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeRepo) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	if _, ok := f.byID[id]; !ok {
		return ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeRepo) List(ctx context.Context) ([]auth.Collaborator, error) {
	var out []auth.Collaborator
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) GetByEmployeeNumber(ctx context.Context, number string) (auth.Collaborator, error) {
	for _, c := range f.byID {
		if c.EmployeeNumber == number {
			return c, nil
		}
	}
	return auth.Collaborator{}, ErrNotFound
}
