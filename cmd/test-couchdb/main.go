package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/todaytrend/trend-dashboard/internal/analysis"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/couchdb"
)

func main() {
	fmt.Println("🔍 TodayTrend Dashboard - CouchDB Connectivity Test")
	fmt.Println("===================================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("\n📡 Testing %s/%s...\n", cfg.CouchDBURL, cfg.CouchDBName)
	fmt.Println(strings.Repeat("-", 40))

	testDatabaseInfo(ctx, client)
	testRecentPosts(ctx, client)
	testHashtagSearch(ctx, client, "밈")
	testLatestAnalysis(ctx, client)

	fmt.Println("\n✅ CouchDB connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Check COUCHDB_* settings in .env if any step failed")
	fmt.Println("   • Run the dashboard with: go run ./cmd/dashboard")
}

func testDatabaseInfo(ctx context.Context, client *couchdb.Client) {
	fmt.Print("🔸 Database info... ")

	info, err := client.DatabaseInfo(ctx)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", describe(err))
		return
	}

	fmt.Printf("✅ %s (%d documents, %d deleted, %d bytes on disk)\n",
		info.DBName, info.DocCount, info.DocDelCount, info.Sizes.File)
}

func testRecentPosts(ctx context.Context, client *couchdb.Client) {
	fmt.Print("🔸 Recent posts... ")

	posts, err := client.ListRecent(ctx, 5)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", describe(err))
		return
	}

	fmt.Printf("✅ SUCCESS (%d posts)\n", len(posts))
	for _, post := range posts {
		text := post.TextContent
		if len([]rune(text)) > 60 {
			text = string([]rune(text)[:60]) + "..."
		}
		fmt.Printf("   📝 %s @%s %s \"%s\"\n", post.CollectedAt.Format("2006-01-02 15:04"), post.AuthorUsername, post.ID, text)
	}
}

func testHashtagSearch(ctx context.Context, client *couchdb.Client, term string) {
	fmt.Printf("🔸 Hashtag search %q... ", term)

	posts, err := client.SearchByHashtag(ctx, term, 20)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", describe(err))
		return
	}

	fmt.Printf("✅ SUCCESS (%d matches in the first %d documents)\n", len(posts), couchdb.HashtagSearchWindow)
}

func testLatestAnalysis(ctx context.Context, client *couchdb.Client) {
	fmt.Print("🔸 Latest keyword analysis... ")

	doc, err := client.FetchLatestAnalysis(ctx)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", describe(err))
		return
	}
	if doc == nil {
		fmt.Println("⚠️  NONE (no keyword_analysis documents yet)")
		return
	}

	fmt.Printf("✅ %s (%d tweets, %d days)\n", doc.ID, doc.TotalTweets, doc.DaysAnalyzed)
	for i, rank := range analysis.EngagementRanking(doc) {
		if i >= 5 {
			break
		}
		fmt.Printf("   ⭐ %-20s avg %.1f (%d posts)\n", rank.Keyword, rank.AvgEngagement, rank.Count)
	}
}

func describe(err error) string {
	switch {
	case couchdb.IsNetworkError(err):
		return fmt.Sprintf("%v (is CouchDB running?)", err)
	case couchdb.StatusCode(err) == 401:
		return fmt.Sprintf("%v (check COUCHDB_USERNAME/COUCHDB_PASSWORD)", err)
	case couchdb.IsNotFound(err):
		return fmt.Sprintf("%v (check COUCHDB_DB_NAME)", err)
	default:
		return err.Error()
	}
}
