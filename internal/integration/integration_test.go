package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/content"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/postgres"
	infraredis "quiz-duel-service/internal/infra/redis"
	"quiz-duel-service/internal/quizgen"
)

type nopNotifier struct{}

func (nopNotifier) Send(string, domain.Event) {}

func TestRecordedDuoEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.Open(pgURL)
	defer db.Close()
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(applied) != 5 {
		t.Fatalf("expected 5 migrations, got %v", applied)
	}
	if _, err := postgres.SeedQuestions(ctx, db, content.Bank()); err != nil {
		t.Fatalf("seed bank: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	loader := postgres.NewPoolLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	timings := app.DefaultTimings()
	timings.LeadTime = 0
	timings.Debounce = 0

	ledger := postgres.NewLedger(db)
	recorder := app.NewRecorder(ledger, nopNotifier{}, nil, 8)
	rooms := infraredis.NewRoomStore(redisClient, 5*time.Minute)
	service := app.NewMatchService(
		rooms,
		infraredis.NewPoolRepository(redisClient, loader, 5*time.Minute),
		nopNotifier{},
		recorder,
		app.WithTimings(timings),
		app.WithSeedSource(func() uint32 { return 7 }),
	)

	service.Connect(domain.Connection{ID: "a", Name: "Alice", Account: &domain.Account{ID: "acc-a", Username: "alice"}})
	service.Connect(domain.Connection{ID: "b", Name: "Bob", Account: &domain.Account{ID: "acc-b", Username: "bob"}})

	mode := domain.ModeSignature{Subject: domain.SubjectMath, Grade: 3, TotalQuestions: 10}
	snap, err := service.CreateRoom(ctx, "a", domain.RoomConfig{Mode: mode})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if n, err := redisClient.Exists(ctx, "quizduel:room:"+snap.Code).Result(); err != nil || n != 1 {
		t.Fatalf("expected room code reserved in redis, got n=%d err=%v", n, err)
	}
	if _, err := service.JoinRoom(ctx, "b", snap.Code); err != nil {
		t.Fatalf("join room: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if err := service.SetReady(id, snap.Code, true); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}

	bank, err := loader.LoadPool(ctx, mode.Category())
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	questions := quizgen.Generate(bank, quizgen.FilterFor(mode), 10, 7)
	for i, q := range questions {
		if _, err := service.SubmitAnswer("a", snap.Code, i, q.Answer); err != nil {
			t.Fatalf("submit a[%d]: %v", i, err)
		}
		answer := q.Answer
		if i == 0 {
			answer = "-1"
		}
		if _, err := service.SubmitAnswer("b", snap.Code, i, answer); err != nil {
			t.Fatalf("submit b[%d]: %v", i, err)
		}
	}

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := recorder.Close(closeCtx); err != nil {
		t.Fatalf("drain recorder: %v", err)
	}

	board, err := ledger.Leaderboard(ctx, mode.Key(), 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].Account.ID != "acc-a" || board[0].Wins != 1 || board[1].Losses != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
	if board[0].Account.Username != "alice" {
		t.Fatalf("expected account join, got %+v", board[0].Account)
	}

	ratings, err := ledger.RatingsFor(ctx, "acc-b")
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if got := domain.Totals(ratings); got != (domain.RatingTotals{GamesPlayed: 1, Losses: 1}) {
		t.Fatalf("unexpected totals for bob: %+v", got)
	}

	matches, err := ledger.MatchesFor(ctx, "acc-b", 5)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(matches) != 1 || len(matches[0].Participants) != 2 {
		t.Fatalf("expected one recorded match with two participants, got %+v", matches)
	}
	if w := matches[0].WinnerAccountID; w == nil || *w != "acc-a" {
		t.Fatalf("expected acc-a to win, got %v", w)
	}
	if err := ledger.CreateMatchRecord(ctx, matches[0]); err == nil {
		t.Fatalf("expected duplicate match id to be rejected")
	}

	granted, err := ledger.GrantBadgeOnce(ctx, "acc-a", domain.BadgeFirstWin)
	if err != nil {
		t.Fatalf("grant badge: %v", err)
	}
	if granted {
		t.Fatalf("expected FIRST_WIN to be granted exactly once")
	}

	badges, err := ledger.BadgesFor(ctx, "acc-a")
	if err != nil {
		t.Fatalf("badges: %v", err)
	}
	if !hasBadge(badges, domain.BadgeFirstWin) {
		t.Fatalf("expected FIRST_WIN among %+v", badges)
	}
	for _, want := range []int{2, 3} {
		streak, err := ledger.UpdateStreak(ctx, "acc-a", true)
		if err != nil {
			t.Fatalf("update streak: %v", err)
		}
		if streak != want {
			t.Fatalf("expected streak %d, got %d", want, streak)
		}
	}
	if streak, err := ledger.UpdateStreak(ctx, "acc-b", true); err != nil || streak != 1 {
		t.Fatalf("expected loser streak to restart at 1, got %d (%v)", streak, err)
	}

	service.Disconnect("a")
	service.Disconnect("b")
	if n, _ := redisClient.Exists(ctx, "quizduel:room:"+snap.Code).Result(); n != 0 {
		t.Fatalf("expected room code released")
	}
}

func hasBadge(badges []domain.EarnedBadge, code string) bool {
	for _, b := range badges {
		if b.Code == code {
			return true
		}
	}
	return false
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
