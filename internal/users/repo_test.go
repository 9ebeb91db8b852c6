package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/partsmarket-backend/pkg/db"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

func setupUsersDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	global_roles TEXT NOT NULL DEFAULT '{member}',
	banned BOOLEAN NOT NULL DEFAULT false,
	auth_version INTEGER NOT NULL DEFAULT 1 CHECK (auth_version >= 1),
	last_login_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
)`).Error)
	return conn
}

func TestRepositoryCreateAndFind(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "Buyer@Example.com",
		Username:     "buyer",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.AuthVersion)

	found, err := repo.FindByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, []enums.GlobalRole{enums.GlobalRoleMember}, GlobalRoles(found))

	_, err = repo.FindByID(ctx, uuid.New())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryBumpAuthVersion(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "seller@example.com", Username: "seller", PasswordHash: "hash"})
	require.NoError(t, err)

	version, err := repo.BumpAuthVersion(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, version)

	version, err = repo.BumpAuthVersion(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 3, version)

	_, err = repo.BumpAuthVersion(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestServiceSetGlobalRolesRevokesTokens(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{Repo: repo, TX: dbpkg.NewFromConn(conn)})
	require.NoError(t, err)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "merchant@example.com", Username: "merchant", PasswordHash: "hash"})
	require.NoError(t, err)

	version, err := svc.SetGlobalRoles(ctx, user.ID, []enums.GlobalRole{enums.GlobalRoleMember, enums.GlobalRoleMerchant})
	require.NoError(t, err)
	require.Equal(t, 2, version)

	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []enums.GlobalRole{enums.GlobalRoleMember, enums.GlobalRoleMerchant}, GlobalRoles(reloaded))
	require.Equal(t, 2, reloaded.AuthVersion)

	_, err = svc.SetGlobalRoles(ctx, user.ID, []enums.GlobalRole{"superuser"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceSetBannedAndMissingUser(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{Repo: repo, TX: dbpkg.NewFromConn(conn)})
	require.NoError(t, err)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{Email: "spam@example.com", Username: "spam", PasswordHash: "hash"})
	require.NoError(t, err)

	version, err := svc.SetBanned(ctx, user.ID, true)
	require.NoError(t, err)
	require.Equal(t, 2, version)

	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Banned)

	_, err = svc.BumpAuthVersion(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceListPagesOnTiedTimestamps(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{Repo: repo, TX: dbpkg.NewFromConn(conn)})
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := map[uuid.UUID]bool{}
	for i := 0; i < 5; i++ {
		user, err := repo.Create(ctx, CreateUserDTO{
			Email:        fmt.Sprintf("tied%d@example.com", i),
			Username:     fmt.Sprintf("tied%d", i),
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		require.NoError(t, conn.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("created_at", at).Error)
		seen[user.ID] = false
	}

	var cursor string
	var pages int
	for {
		page, err := svc.List(ctx, ListQuery{Params: pagination.Params{Limit: 2, Cursor: cursor}})
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			done, ok := seen[item.ID]
			require.True(t, ok)
			require.False(t, done, "user %s returned twice", item.ID)
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	require.Equal(t, 3, pages)
	for id, done := range seen {
		require.True(t, done, "user %s skipped", id)
	}

	_, err = svc.List(ctx, ListQuery{Params: pagination.Params{Cursor: "garbage"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryListFilters(t *testing.T) {
	conn := setupUsersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	alice, err := repo.Create(ctx, CreateUserDTO{Email: "alice@shop.test", Username: "Alice_Parts", PasswordHash: "hash"})
	require.NoError(t, err)
	bob, err := repo.Create(ctx, CreateUserDTO{Email: "bob@garage.test", Username: "bob", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Email: "carol@garage.test", Username: "aliceparts", PasswordHash: "hash"})
	require.NoError(t, err)
	require.NoError(t, repo.SetBanned(ctx, bob.ID, true))

	banned := true
	rows, err := repo.List(ctx, ListFilter{Banned: &banned}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, bob.ID, rows[0].ID)

	rows, err = repo.List(ctx, ListFilter{Search: "GARAGE"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	notBanned := false
	rows, err = repo.List(ctx, ListFilter{Banned: &notBanned, Search: "garage"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "carol@garage.test", rows[0].Email)

	// Underscore matches literally, so "aliceparts" does not qualify.
	rows, err = repo.List(ctx, ListFilter{Search: "alice_"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, alice.ID, rows[0].ID)
}
