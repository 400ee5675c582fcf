package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"gopkg.in/gomail.v2"
)

const (
	teamsTopTerms = 5
	emailTopTerms = 10
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	send   func(m *gomail.Message) error
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	s.send = s.dialAndSend
	return s
}

// SendDigest sends a digest via configured notification channels
func (s *Service) SendDigest(ctx context.Context, digest *models.Digest) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, digest); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent digest to Teams")
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(digest); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, digest *models.Digest) error {
	message := BuildTeamsMessage(digest)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

// BuildTeamsMessage renders a digest as a Teams message card
func BuildTeamsMessage(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("TodayTrend Keyword Digest - %s", periodTitle(digest.Period)),
		Text: fmt.Sprintf("%d posts analyzed over the last %d days (%d collected in total)",
			digest.AnalyzedPosts, digest.DaysAnalyzed, digest.TotalPosts),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Total Posts", Value: fmt.Sprintf("%d", digest.TotalPosts)},
			{Name: "Analyzed Posts", Value: fmt.Sprintf("%d", digest.AnalyzedPosts)},
			{Name: "Analysis Date", Value: formatDate(digest.AnalysisDate)},
			{Name: "Generated", Value: digest.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(digest.TopKeywords) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Keywords",
			ActivityText:  joinTerms(digest.TopKeywords, teamsTopTerms, ""),
			Markdown:      true,
		})
	}

	if len(digest.TopHashtags) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Hashtags",
			ActivityText:  joinTerms(digest.TopHashtags, teamsTopTerms, "#"),
			Markdown:      true,
		})
	}

	if len(digest.Engagement) > 0 {
		var facts []TeamsFact
		for i, rank := range digest.Engagement {
			if i >= teamsTopTerms {
				break
			}
			facts = append(facts, TeamsFact{
				Name:  rank.Keyword,
				Value: fmt.Sprintf("avg %.1f over %d posts", rank.AvgEngagement, rank.Count),
			})
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Highest Engagement",
			Facts:         facts,
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("TodayTrend Keyword Digest - %s (%d posts)",
		periodTitle(digest.Period), digest.AnalyzedPosts)

	htmlBody, err := BuildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := BuildEmailText(digest)

	// Create message
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	return d.DialAndSend(m)
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>TodayTrend Keyword Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1d9bf0; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        table { border-collapse: collapse; margin: 10px 0; }
        td, th { padding: 4px 12px; text-align: left; border-bottom: 1px solid #ddd; }
    </style>
</head>
<body>
    <div class="header">
        <h1>TodayTrend Keyword Digest</h1>
        <p>{{.Period | title}} digest generated on {{.GeneratedAt.UTC.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Posts:</strong> {{.TotalPosts}}</p>
        <p><strong>Analyzed Posts:</strong> {{.AnalyzedPosts}} over {{.DaysAnalyzed}} days</p>
        <p><strong>Analysis Date:</strong> {{date .AnalysisDate}}</p>
    </div>

    {{if .TopKeywords}}
    <h2>Top Keywords</h2>
    <table>
    {{range $index, $term := .TopKeywords}}{{if lt $index 10}}
        <tr><td>{{inc $index}}.</td><td>{{$term.Term}}</td><td>{{$term.Count}}</td></tr>
    {{end}}{{end}}
    </table>
    {{end}}

    {{if .TopHashtags}}
    <h2>Top Hashtags</h2>
    <table>
    {{range $index, $term := .TopHashtags}}{{if lt $index 10}}
        <tr><td>{{inc $index}}.</td><td>#{{$term.Term}}</td><td>{{$term.Count}}</td></tr>
    {{end}}{{end}}
    </table>
    {{end}}

    {{if .Engagement}}
    <h2>Highest Engagement</h2>
    <table>
        <tr><th>Keyword</th><th>Avg engagement</th><th>Posts</th></tr>
    {{range $index, $rank := .Engagement}}{{if lt $index 10}}
        <tr><td>{{$rank.Keyword}}</td><td>{{printf "%.1f" $rank.AvgEngagement}}</td><td>{{$rank.Count}}</td></tr>
    {{end}}{{end}}
    </table>
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the TodayTrend dashboard.</small></p>
</body>
</html>
`

var emailHTML = template.Must(template.New("email").Funcs(template.FuncMap{
	"title": periodTitle,
	"date":  formatDate,
	"inc":   func(i int) int { return i + 1 },
}).Parse(emailTemplate))

// BuildEmailHTML renders the HTML email body of a digest
func BuildEmailHTML(digest *models.Digest) (string, error) {
	var buf bytes.Buffer
	if err := emailHTML.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildEmailText renders the plain text email body of a digest
func BuildEmailText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("TodayTrend Keyword Digest - %s\n", periodTitle(digest.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Posts: %d\n", digest.TotalPosts))
	text.WriteString(fmt.Sprintf("Analyzed Posts: %d over %d days\n", digest.AnalyzedPosts, digest.DaysAnalyzed))
	text.WriteString(fmt.Sprintf("Analysis Date: %s\n", formatDate(digest.AnalysisDate)))

	writeTerms(&text, "TOP KEYWORDS", digest.TopKeywords, "")
	writeTerms(&text, "TOP HASHTAGS", digest.TopHashtags, "#")

	if len(digest.Engagement) > 0 {
		text.WriteString("\nHIGHEST ENGAGEMENT\n")
		text.WriteString("==================\n")
		for i, rank := range digest.Engagement {
			if i >= emailTopTerms {
				break
			}
			text.WriteString(fmt.Sprintf("%d. %s - avg %.1f over %d posts\n", i+1, rank.Keyword, rank.AvgEngagement, rank.Count))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the TodayTrend dashboard.\n")

	return text.String()
}

func writeTerms(text *strings.Builder, heading string, terms []models.TermCount, prefix string) {
	if len(terms) == 0 {
		return
	}

	text.WriteString("\n" + heading + "\n")
	text.WriteString(strings.Repeat("=", len(heading)) + "\n")
	for i, term := range terms {
		if i >= emailTopTerms {
			break
		}
		text.WriteString(fmt.Sprintf("%d. %s%s (%d)\n", i+1, prefix, term.Term, term.Count))
	}
}

func joinTerms(terms []models.TermCount, limit int, prefix string) string {
	var parts []string
	for i, term := range terms {
		if i >= limit {
			break
		}
		parts = append(parts, fmt.Sprintf("**%s%s** (%d)", prefix, term.Term, term.Count))
	}
	return strings.Join(parts, ", ")
}

func periodTitle(period string) string {
	if period == "" {
		return ""
	}
	return strings.ToUpper(period[:1]) + period[1:]
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("Jan 2, 2006 15:04")
}
