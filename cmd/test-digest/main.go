package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/todaytrend/trend-dashboard/internal/analysis"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/couchdb"
	"github.com/todaytrend/trend-dashboard/internal/digest"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"github.com/todaytrend/trend-dashboard/internal/notifications"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

const outputDir = "test_output"

// TerminalNotificationService prints digests and saves the rendered email
type TerminalNotificationService struct{}

func (t *TerminalNotificationService) SendDigest(_ context.Context, d *models.Digest) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 TODAYTREND KEYWORD DIGEST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Print(notifications.BuildEmailText(d))

	html, err := notifications.BuildEmailHTML(d)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("digest_%s.html", d.GeneratedAt.Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(filename, []byte(html), 0644); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save HTML: %v\n", err)
	} else {
		fmt.Printf("\n💾 HTML email saved to: %s\n", filename)
	}

	fmt.Println(strings.Repeat("=", 70))
	return nil
}

// sampleLoader serves a fixed analysis document
type sampleLoader struct {
	doc *models.KeywordAnalysis
}

func (s *sampleLoader) Load(context.Context) error { return nil }
func (s *sampleLoader) Analysis() *models.KeywordAnalysis { return s.doc }

func main() {
	sample := flag.Bool("sample", false, "use built-in sample analysis instead of CouchDB")
	flag.Parse()

	fmt.Println("🤖 TodayTrend Dashboard - Test Digest Generator")
	fmt.Println("===============================================")

	archive, err := storage.NewLocalStorage(outputDir)
	if err != nil {
		log.Fatalf("Failed to prepare %s: %v", outputDir, err)
	}

	var loader digest.AnalysisLoader
	if *sample {
		loader = &sampleLoader{doc: sampleAnalysis()}
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		client, err := couchdb.NewClient(couchdb.Options{
			BaseURL:  cfg.CouchDBURL,
			Database: cfg.CouchDBName,
			Username: cfg.CouchDBUsername,
			Password: cfg.CouchDBPassword,
			Timeout:  cfg.CouchDBTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create CouchDB client: %v", err)
		}
		loader = analysis.NewAccessor(client)
	}

	service := digest.NewService(loader, archive, &TerminalNotificationService{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := service.Run(ctx, digest.PeriodManual); err != nil {
		fmt.Printf("❌ Error generating digest: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Test digest generation completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Printf("   • Check the '%s' directory for the saved JSON digest and HTML email\n", outputDir)
	fmt.Println("   • Run 'go test ./internal/digest ./internal/notifications -v' for more detailed tests")
	fmt.Println("   • Set DIGEST_SCHEDULE and a notification channel to send digests from the dashboard")
}

func sampleAnalysis() *models.KeywordAnalysis {
	avg := 182.4
	return &models.KeywordAnalysis{
		ID:           "keyword_analysis:sample",
		TotalTweets:  2480,
		RecentTweets: 412,
		AnalysisDate: models.NewTimestamp(time.Now().Add(-2 * time.Hour)),
		DaysAnalyzed: 7,
		TopKeywords: []models.TermCount{
			{Term: "밈", Count: 88}, {Term: "게임", Count: 61}, {Term: "심리테스트", Count: 47},
			{Term: "챌린지", Count: 35}, {Term: "신작", Count: 22},
		},
		TopHashtags: []models.TermCount{
			{Term: "오늘의밈", Count: 40}, {Term: "MBTI", Count: 31}, {Term: "신작게임", Count: 18},
		},
		TopMentions: []models.TermCount{{Term: "todaytrend", Count: 9}},
		KeywordTrends: models.KeywordTrends{
			Categories: map[string]map[string]int{
				"meme": {"밈": 70, "챌린지": 20},
				"game": {"게임": 55, "신작": 22},
			},
			Engagement: map[string]models.EngagementAccumulator{
				"밈":     {Total: 10540, Count: 88},
				"게임":    {Total: 4270, Count: 61},
				"심리테스트": {Total: 8573, Count: 47, Avg: &avg},
				"신작":    {Total: 900, Count: 1},
			},
		},
	}
}
