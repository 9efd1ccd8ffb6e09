package backend

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/xray-triage/pkg/models"
)

func TestReviews(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.CreateReview(ctx, &models.Review{Username: "alice", Content: "Fast and clear", Rating: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.CreatedAt)

	_, err = client.CreateReview(ctx, &models.Review{Username: "alice", Content: "Second scan was slower", Rating: 3})
	require.NoError(t, err)
	bob, err := client.CreateReview(ctx, &models.Review{Username: "bob", Content: "Useful", Rating: 4})
	require.NoError(t, err)

	all, err := client.ListReviews(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := client.ReviewsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	if diff := cmp.Diff(*first, mine[0]); diff != "" {
		t.Errorf("review mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, client.DeleteReview(ctx, bob.ID))
	// повторное удаление - 404 от бэкенда
	assert.Error(t, client.DeleteReview(ctx, bob.ID))

	require.NoError(t, client.DeleteReviewsByUser(ctx, "alice"))
	all, err = client.ListReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNewsletter(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	subs, err := client.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, client.Subscribe(ctx, &models.Subscriber{Username: "alice", Email: "alice@example.com"}))
	assert.Error(t, client.Subscribe(ctx, &models.Subscriber{Username: "bob"}), "email is required")

	subs, err = client.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Subscriber{{Username: "alice", Email: "alice@example.com"}}, subs)

	require.NoError(t, client.SendNewsletter(ctx, &models.Newsletter{Subject: "Weekly", Body: "New models deployed"}))
	assert.Error(t, client.SendNewsletter(ctx, &models.Newsletter{Body: "no subject"}))
}

func TestCountUsers(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	token, err := client.Login(ctx, "admin", "secret")
	require.NoError(t, err)

	n, err := client.CountUsers(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, client.Register(ctx, &models.RegisterRequest{Username: name, Email: name + "@example.com", Password: "secret"}))
	}

	n, err = client.CountUsers(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users, err := client.ListUsers(ctx, token.AccessToken)
	require.NoError(t, err)
	require.Len(t, users, n)
	assert.Equal(t, "alice", users[0].Username)
}
