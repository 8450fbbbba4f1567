package store

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/stresssense/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func() Repository {
	t.Helper()
	return map[string]func() Repository{
		BackendMemory: func() Repository { return NewMemory() },
		BackendSQLite: func() Repository {
			repo, err := NewSQLite()
			require.NoError(t, err)
			return repo
		},
	}
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRepositoryContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create and get", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				sess := domain.NewSession("s-1", day("2024-05-01"))
				require.NoError(t, repo.CreateSession(ctx, sess))

				got, err := repo.GetSession(ctx, "s-1")
				require.NoError(t, err)
				assert.Equal(t, domain.SessionID("s-1"), got.ID)
				assert.Equal(t, "2024-05-01", got.Date)
				assert.Empty(t, got.Messages)
				assert.False(t, got.HasStressLevel())
				require.NoError(t, repo.Ping(ctx))
			})

			t.Run("duplicate id rejected", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				require.NoError(t, repo.CreateSession(ctx, domain.NewSession("dup", day("2024-05-01"))))
				err := repo.CreateSession(ctx, domain.NewSession("dup", day("2024-05-02")))
				assert.ErrorIs(t, err, ErrDuplicateSession)

				got, err := repo.GetSession(ctx, "dup")
				require.NoError(t, err)
				assert.Equal(t, "2024-05-01", got.Date)
			})

			t.Run("unknown id is not found", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				_, err := repo.GetSession(ctx, "missing")
				assert.ErrorIs(t, err, domain.ErrNotFound)

				err = repo.AppendMessage(ctx, "missing", domain.NewMessage(domain.SenderUser, "hi", time.Now()))
				assert.ErrorIs(t, err, domain.ErrNotFound)

				assert.ErrorIs(t, repo.SetStressLevel(ctx, "missing", "High"), domain.ErrNotFound)
			})

			t.Run("append preserves order", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				require.NoError(t, repo.CreateSession(ctx, domain.NewSession("s-1", day("2024-05-01"))))
				at := day("2024-05-01").Add(9 * time.Hour)
				texts := []string{"first", "second", "third"}
				for i, text := range texts {
					sender := domain.SenderUser
					if i%2 == 1 {
						sender = domain.SenderAssistant
					}
					require.NoError(t, repo.AppendMessage(ctx, "s-1", domain.NewMessage(sender, text, at)))

					got, err := repo.GetSession(ctx, "s-1")
					require.NoError(t, err)
					require.Len(t, got.Messages, i+1)
					for j := 0; j <= i; j++ {
						assert.Equal(t, texts[j], got.Messages[j].Text)
					}
				}

				got, err := repo.GetSession(ctx, "s-1")
				require.NoError(t, err)
				assert.Equal(t, domain.SenderAssistant, got.Messages[1].Sender)
				assert.Equal(t, "2024-05-01 09:00", got.Messages[2].Timestamp)
			})

			t.Run("stress level overwritten", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				require.NoError(t, repo.CreateSession(ctx, domain.NewSession("s-1", day("2024-05-01"))))
				require.NoError(t, repo.SetStressLevel(ctx, "s-1", "High"))
				require.NoError(t, repo.SetStressLevel(ctx, "s-1", "Low"))

				got, err := repo.GetSession(ctx, "s-1")
				require.NoError(t, err)
				assert.Equal(t, "Low", got.StressLevel)
			})

			t.Run("list orders by date desc then insertion", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				for _, c := range []struct {
					id   domain.SessionID
					date string
				}{
					{"a", "2024-05-01"},
					{"b", "2024-05-03"},
					{"c", "2024-05-01"},
					{"d", "2024-05-02"},
					{"e", "2024-05-03"},
				} {
					require.NoError(t, repo.CreateSession(ctx, domain.NewSession(c.id, day(c.date))))
				}

				list, err := repo.ListSessions(ctx)
				require.NoError(t, err)

				var ids []domain.SessionID
				for _, sess := range list {
					ids = append(ids, sess.ID)
				}
				assert.Equal(t, []domain.SessionID{"b", "e", "d", "a", "c"}, ids)
			})

			t.Run("returned sessions are copies", func(t *testing.T) {
				repo := open()
				defer func() { _ = repo.Close() }()
				ctx := context.Background()

				require.NoError(t, repo.CreateSession(ctx, domain.NewSession("s-1", day("2024-05-01"))))
				require.NoError(t, repo.AppendMessage(ctx, "s-1", domain.NewMessage(domain.SenderUser, "hi", time.Now())))

				got, err := repo.GetSession(ctx, "s-1")
				require.NoError(t, err)
				got.Messages[0].Text = "mutated"
				got.StressLevel = "mutated"

				again, err := repo.GetSession(ctx, "s-1")
				require.NoError(t, err)
				assert.Equal(t, "hi", again.Messages[0].Text)
				assert.Empty(t, again.StressLevel)
			})
		})
	}
}

func TestNewBackend(t *testing.T) {
	repo, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, repo)

	repo, err = New(BackendSQLite)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, repo)
	require.NoError(t, repo.Close())

	_, err = New("postgres")
	assert.Error(t, err)
}

func TestSQLiteStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	first, err := NewSQLite()
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	second, err := NewSQLite()
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, first.CreateSession(ctx, domain.NewSession("s-1", day("2024-05-01"))))

	_, err = second.GetSession(ctx, "s-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
