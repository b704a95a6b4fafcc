package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"agora/internal/models"
	"agora/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set, usually loaded from YAML:
//
//	users:
//	  - username: ada
//	    email: ada@example.com
//	    staff: true
//	posts:
//	  - author: ada
//	    description: First post
//	    likes: [bob]
//	    comments:
//	      - author: bob
//	        text: Welcome
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Bio       string `yaml:"bio"`
	Staff     bool   `yaml:"staff"`
}

type FixturePost struct {
	Author      string           `yaml:"author"`
	Description string           `yaml:"description"`
	Likes       []string         `yaml:"likes"`
	Dislikes    []string         `yaml:"dislikes"`
	Comments    []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author   string   `yaml:"author"`
	Text     string   `yaml:"text"`
	Likes    []string `yaml:"likes"`
	Dislikes []string `yaml:"dislikes"`
}

// ParseFixture decodes YAML. Unknown keys are rejected.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// LoadFixture reads and parses the YAML file at path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// Apply creates the fixture's users, then its posts with their comments and
// reactions. Authors and reactors are referenced by username and must be
// declared under users.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	ids := make(map[string]uint, len(fx.Users))

	for _, fu := range fx.Users {
		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		u, err := s.users.Register(ctx, service.RegisterInput{
			Username:  fu.Username,
			Email:     fu.Email,
			Password:  password,
			FirstName: fu.FirstName,
			LastName:  fu.LastName,
			Bio:       fu.Bio,
		})
		if err != nil {
			return sum, fmt.Errorf("user %q: %w", fu.Username, err)
		}
		if fu.Staff {
			if _, err := s.users.EnsureStaff(ctx, u.Username, password); err != nil {
				return sum, fmt.Errorf("promote %q: %w", fu.Username, err)
			}
		}
		ids[fu.Username] = u.ID
		sum.Users++
	}

	lookup := func(name string) (uint, error) {
		id, ok := ids[name]
		if !ok {
			return 0, fmt.Errorf("unknown user %q", name)
		}
		return id, nil
	}

	for i, fp := range fx.Posts {
		authorID, err := lookup(fp.Author)
		if err != nil {
			return sum, fmt.Errorf("post %d: %w", i, err)
		}
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{UserID: authorID, Description: fp.Description})
		if err != nil {
			return sum, fmt.Errorf("post %d: %w", i, err)
		}
		sum.Posts++
		n, err := s.applyReactions(ctx, models.TargetPost, post.Post.ID, fp.Likes, fp.Dislikes, lookup)
		sum.Reactions += n
		if err != nil {
			return sum, fmt.Errorf("post %d: %w", i, err)
		}

		for j, fc := range fp.Comments {
			commenterID, err := lookup(fc.Author)
			if err != nil {
				return sum, fmt.Errorf("post %d comment %d: %w", i, j, err)
			}
			comment, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
				UserID: commenterID,
				PostID: post.Post.ID,
				Text:   fc.Text,
			})
			if err != nil {
				return sum, fmt.Errorf("post %d comment %d: %w", i, j, err)
			}
			sum.Comments++
			n, err := s.applyReactions(ctx, models.TargetComment, comment.Comment.ID, fc.Likes, fc.Dislikes, lookup)
			sum.Reactions += n
			if err != nil {
				return sum, fmt.Errorf("post %d comment %d: %w", i, j, err)
			}
		}
	}
	return sum, nil
}

func (s *Seeder) applyReactions(
	ctx context.Context,
	target models.TargetType,
	id uint,
	likes, dislikes []string,
	lookup func(string) (uint, error),
) (int, error) {
	n := 0
	for _, group := range []struct {
		names  []string
		action service.Action
	}{{likes, service.ActionLike}, {dislikes, service.ActionDislike}} {
		for _, name := range group.names {
			userID, err := lookup(name)
			if err != nil {
				return n, err
			}
			if err := s.reactions.Apply(ctx, target, id, userID, group.action); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
