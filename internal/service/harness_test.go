package service

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"agora/internal/cache"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/notifications"
	"agora/internal/policy"
	"agora/internal/repository"
	"agora/internal/storage"
	"agora/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db        *gorm.DB
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	mediaDir  string
	store     *repository.Store
	reactions *ReactionService
	posts     *PostService
	comments  *CommentService
	users     *UserService
	auth      *AuthService
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := t.TempDir()
	blobs, err := storage.NewLocalStore(dir, "/media")
	require.NoError(t, err)

	store := repository.NewStore(db)
	gate := policy.NewGate(store.Users)
	c := cache.New(rdb)
	notifier := notifications.NewNotifier(rdb)
	media := NewMedia(blobs, 1<<20)
	tokens := middleware.NewTokens(middleware.JWTConfig{
		Secret:     "test-secret-test-secret-test-secret",
		Issuer:     "agora-api",
		Audience:   "agora-client",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, rdb)

	users := NewUserService(store, gate, media, c, notifier)
	return &harness{
		db:        db,
		mr:        mr,
		rdb:       rdb,
		mediaDir:  dir,
		store:     store,
		reactions: NewReactionService(store, gate, c, notifier, featureflags.NewManager(flags)),
		posts:     NewPostService(store, gate, media, c, notifier),
		comments:  NewCommentService(store, gate, c, notifier),
		users:     users,
		auth:      NewAuthService(users, tokens),
	}
}

func pngUpload(t *testing.T, name string) *Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return &Upload{Filename: name, Data: buf.Bytes()}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// failUpdates makes every UPDATE on table fail for the rest of the test.
func failUpdates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	name := "test:fail_updates_" + table
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("update rejected"))
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Update().Remove(name) })
}

// storedFiles lists the keys present under the media directory.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var keys []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return keys
}
