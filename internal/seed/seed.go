// Package seed fills a database with demo users, posts, comments and reactions.
// Everything is written through the service layer so seeded data obeys the same
// rules as data created over the API. Intended for development only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"agora/internal/cache"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/policy"
	"agora/internal/repository"
	"agora/internal/service"
	"agora/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is given to every generated user.
const DefaultPassword = "password123"

// Options sizes a random seed run.
type Options struct {
	NumUsers       int
	NumPosts       int
	MaxComments    int
	ReactionChance float64
	Seed           int64
	ShouldClean    bool
}

// Summary counts what a run created.
type Summary struct {
	Users     int
	Posts     int
	Comments  int
	Reactions int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d comments, %d reactions", s.Users, s.Posts, s.Comments, s.Reactions)
}

// Seeder writes demo data through the services.
type Seeder struct {
	db        *gorm.DB
	users     *service.UserService
	posts     *service.PostService
	comments  *service.CommentService
	reactions *service.ReactionService
}

// NewSeeder wires services over db without Redis. blobs may be nil when no
// fixture carries images.
func NewSeeder(db *gorm.DB, blobs storage.Store) *Seeder {
	store := repository.NewStore(db)
	gate := policy.NewGate(store.Users)
	c := cache.New(nil)
	notifier := notifications.NewNotifier(nil)
	media := service.NewMedia(blobs, 10<<20)

	return &Seeder{
		db:        db,
		users:     service.NewUserService(store, gate, media, c, notifier),
		posts:     service.NewPostService(store, gate, media, c, notifier),
		comments:  service.NewCommentService(store, gate, c, notifier),
		reactions: service.NewReactionService(store, gate, c, notifier, featureflags.NewManager("")),
	}
}

// ClearAll removes every row the seeder can create, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.Reaction{}, &models.Comment{}, &models.Post{}, &models.User{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Run creates random data sized by opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return sum, err
		}
	}

	faker := gofakeit.New(opts.Seed)
	//nolint:gosec // demo data
	r := rand.New(rand.NewSource(opts.Seed))

	users := make([]*models.User, 0, opts.NumUsers)
	for range opts.NumUsers {
		name := username(faker.Username() + faker.DigitN(4))
		u, err := s.users.Register(ctx, service.RegisterInput{
			Username:  name,
			Email:     strings.ToLower(name) + "@" + faker.DomainName(),
			Password:  DefaultPassword,
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
			Bio:       faker.Sentence(8),
		})
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	for range opts.NumPosts {
		author := users[r.Intn(len(users))]
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			UserID:      author.ID,
			Description: faker.Sentence(12),
		})
		if err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		sum.Posts++
		sum.Reactions += s.react(ctx, r, users, models.TargetPost, post.Post.ID, opts.ReactionChance)

		comments := 0
		if opts.MaxComments > 0 {
			comments = r.Intn(opts.MaxComments + 1)
		}
		for range comments {
			commenter := users[r.Intn(len(users))]
			comment, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
				UserID: commenter.ID,
				PostID: post.Post.ID,
				Text:   faker.Sentence(6),
			})
			if err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
			sum.Reactions += s.react(ctx, r, users, models.TargetComment, comment.Comment.ID, opts.ReactionChance)
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete", "summary", sum.String())
	return sum, nil
}

// react has each user like or dislike the target with probability chance.
func (s *Seeder) react(ctx context.Context, r *rand.Rand, users []*models.User, target models.TargetType, id uint, chance float64) int {
	n := 0
	for _, u := range users {
		if r.Float64() >= chance {
			continue
		}
		action := service.ActionLike
		if r.Intn(4) == 0 {
			action = service.ActionDislike
		}
		if err := s.reactions.Apply(ctx, target, id, u.ID, action); err != nil {
			middleware.Logger.WarnContext(ctx, "seed reaction failed", "target", target, "id", id, "error", err)
			continue
		}
		n++
	}
	return n
}

// username drops characters that account validation rejects.
func username(raw string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.@+-", r)) {
			return r
		}
		return -1
	}, raw)
}
