package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"gopkg.in/gomail.v2"
)

func sampleDigest() *models.Digest {
	return &models.Digest{
		GeneratedAt:   time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Period:        "weekly",
		AnalysisDate:  time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC),
		TotalPosts:    1520,
		AnalyzedPosts: 310,
		DaysAnalyzed:  7,
		TopKeywords:   []models.TermCount{{Term: "밈", Count: 42}, {Term: "game", Count: 30}},
		TopHashtags:   []models.TermCount{{Term: "trend", Count: 12}},
		Engagement: []models.EngagementRank{
			{Keyword: "game", AvgEngagement: 120.5, Count: 30},
		},
	}
}

func TestBuildTeamsMessage(t *testing.T) {
	message := BuildTeamsMessage(sampleDigest())

	assert.Equal(t, "MessageCard", message.Type)
	assert.Equal(t, "TodayTrend Keyword Digest - Weekly", message.Title)
	assert.Contains(t, message.Text, "310 posts analyzed over the last 7 days")
	require.Len(t, message.Sections, 4)
	assert.Equal(t, "Summary", message.Sections[0].ActivityTitle)
	assert.Equal(t, "**밈** (42), **game** (30)", message.Sections[1].ActivityText)
	assert.Equal(t, "**#trend** (12)", message.Sections[2].ActivityText)
	assert.Equal(t, []TeamsFact{{Name: "game", Value: "avg 120.5 over 30 posts"}}, message.Sections[3].Facts)
}

func TestBuildTeamsMessage_EmptyDigest(t *testing.T) {
	message := BuildTeamsMessage(&models.Digest{Period: "manual"})

	require.Len(t, message.Sections, 1)
	assert.Contains(t, message.Sections[0].Facts, TeamsFact{Name: "Analysis Date", Value: "unknown"})
}

func TestBuildEmailBodies(t *testing.T) {
	digest := sampleDigest()

	html, err := BuildEmailHTML(digest)
	require.NoError(t, err)
	assert.Contains(t, html, "Weekly digest generated on March 4, 2024 at 9:00 AM UTC")
	assert.Contains(t, html, "<td>#trend</td>")
	assert.Contains(t, html, "<td>120.5</td>")

	text := BuildEmailText(digest)
	assert.Contains(t, text, "Total Posts: 1520")
	assert.Contains(t, text, "1. 밈 (42)")
	assert.Contains(t, text, "1. #trend (12)")
	assert.Contains(t, text, "1. game - avg 120.5 over 30 posts")
}

func TestSendDigest_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	require.NoError(t, service.SendDigest(context.Background(), sampleDigest()))
	assert.Equal(t, "TodayTrend Keyword Digest - Weekly", received.Title)
}

func TestSendDigest_TeamsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid card"))
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	err := service.SendDigest(context.Background(), sampleDigest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams webhook returned status 400: invalid card")
}

func TestSendDigest_Email(t *testing.T) {
	service := NewService(&config.Config{
		NotificationEmail: "team@example.com",
		SMTPHost:          "smtp.example.com",
		SMTPPort:          587,
		SMTPUsername:      "bot@example.com",
		SMTPPassword:      "secret",
	})

	var sent *gomail.Message
	service.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	require.NoError(t, service.SendDigest(context.Background(), sampleDigest()))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"team@example.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"bot@example.com"}, sent.GetHeader("From"))
	assert.Equal(t, []string{"TodayTrend Keyword Digest - Weekly (310 posts)"}, sent.GetHeader("Subject"))
}

func TestSendDigest_CollectsChannelErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{
		TeamsWebhookURL:   server.URL,
		NotificationEmail: "team@example.com",
	})
	service.send = func(*gomail.Message) error { return errors.New("connection refused") }

	err := service.SendDigest(context.Background(), sampleDigest())
	require.Error(t, err)
	assert.Equal(t, "notification errors: Email: failed to send email: connection refused", err.Error())
}

func TestSendDigest_NoChannels(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendDigest(context.Background(), sampleDigest()))
}
