package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/linkcache"
	"github.com/tap2go/tap2go/internal/storage/memory"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []Message
	answered []string
	panics   bool
}

func (s *fakeSender) SendMessage(_ context.Context, m Message) error {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSender) AnswerCallback(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered = append(s.answered, id)
	return nil
}

func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.Text
	}
	return out
}

type fixture struct {
	store  *memory.Store
	cache  *linkcache.Memory
	clock  *manualClock
	linker *Linker
	svc    *ledger.Service
	sender *fakeSender
	bot    *Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	cache := linkcache.NewMemory(0)
	clk := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	linker := NewLinker(store, cache, LinkerConfig{BotUsername: "@tap2go_bot", TokenTTL: 15 * time.Minute, Clock: clk})
	svc := ledger.NewService(store, ledger.WithClock(clk))
	sender := &fakeSender{}
	bot := NewBot(linker, svc, sender, BotConfig{})

	ctx := context.Background()
	for _, a := range []ledger.Account{
		{ID: "stu-1", Role: ledger.RoleStudent, Name: "Ada", Balance: 123450},
		{ID: "stu-2", Role: ledger.RoleStudent, Name: "Bayo"},
	} {
		if err := store.CreateAccount(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}
	return &fixture{store: store, cache: cache, clock: clk, linker: linker, svc: svc, sender: sender, bot: bot}
}

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func TestIssueLinkToken(t *testing.T) {
	f := newFixture(t)
	inv, err := f.linker.IssueLinkToken(context.Background(), "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	if !tokenPattern.MatchString(inv.Token) {
		t.Fatalf("token %q is not a valid start payload", inv.Token)
	}
	if inv.DeepLink != "https://t.me/tap2go_bot?start="+inv.Token {
		t.Fatalf("unexpected deep link %q", inv.DeepLink)
	}
	if !inv.ExpiresAt.Equal(f.clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", inv.ExpiresAt)
	}
	if _, err := f.linker.IssueLinkToken(context.Background(), "ghost"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLinkWithTokenIsOneTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.linker.IssueLinkToken(ctx, "stu-1")

	id, err := f.linker.LinkWithToken(ctx, inv.Token, "42")
	if err != nil || id != "stu-1" {
		t.Fatalf("link: %q %v", id, err)
	}
	if got, ok, _ := f.cache.Get(ctx, "42"); !ok || got != "stu-1" {
		t.Fatal("link not cached")
	}
	if _, err := f.linker.LinkWithToken(ctx, inv.Token, "43"); !errors.Is(err, ledger.ErrLinkTokenInvalid) {
		t.Fatalf("expected reused token rejected, got %v", err)
	}
}

func TestLinkTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.linker.IssueLinkToken(ctx, "stu-1")
	f.clock.Advance(16 * time.Minute)
	if _, err := f.linker.LinkWithToken(ctx, inv.Token, "42"); !errors.Is(err, ledger.ErrLinkTokenInvalid) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
	a, _ := f.store.GetAccount(ctx, "stu-1")
	if a.LinkedExternalID != "" {
		t.Fatal("expired token must not link")
	}
}

func TestLinkUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.linker.Link(ctx, "stu-1", "42"); err != nil {
		t.Fatal(err)
	}
	if err := f.linker.Link(ctx, "stu-1", "42"); err != nil {
		t.Fatalf("relinking the same pair should succeed, got %v", err)
	}
	if err := f.linker.Link(ctx, "stu-2", "42"); !errors.Is(err, ledger.ErrExternalAlreadyLinked) {
		t.Fatalf("expected external already linked, got %v", err)
	}
	if err := f.linker.Link(ctx, "stu-1", "99"); !errors.Is(err, ledger.ErrAccountAlreadyLinked) {
		t.Fatalf("expected account already linked, got %v", err)
	}
}

func TestLinkWithTokenRollsBackOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.linker.Link(ctx, "stu-2", "42"); err != nil {
		t.Fatal(err)
	}
	inv, _ := f.linker.IssueLinkToken(ctx, "stu-1")
	if _, err := f.linker.LinkWithToken(ctx, inv.Token, "42"); !errors.Is(err, ledger.ErrExternalAlreadyLinked) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// The failed link leaves the token unused.
	if _, err := f.linker.LinkWithToken(ctx, inv.Token, "43"); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
}

func TestResolveAccountPrefersCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, ok, err := f.linker.ResolveAccount(ctx, "42"); ok || err != nil {
		t.Fatalf("expected miss, got %v %v", ok, err)
	}
	if err := f.store.SetLinkedExternalID(ctx, "stu-1", "42"); err != nil {
		t.Fatal(err)
	}
	if id, ok, _ := f.linker.ResolveAccount(ctx, "42"); !ok || id != "stu-1" {
		t.Fatalf("expected store hit, got %q %v", id, ok)
	}
	if _, ok, _ := f.cache.Get(ctx, "42"); !ok {
		t.Fatal("positive lookup should be cached")
	}
	_ = f.cache.Set(ctx, "42", "stu-2")
	if id, _, _ := f.linker.ResolveAccount(ctx, "42"); id != "stu-2" {
		t.Fatalf("expected cache to answer first, got %q", id)
	}
}

func TestUnlink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.linker.Link(ctx, "stu-1", "42"); err != nil {
		t.Fatal(err)
	}
	if err := f.linker.Unlink(ctx, "stu-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := f.linker.ResolveAccount(ctx, "42"); ok {
		t.Fatal("unlinked identity still resolves")
	}
	if err := f.linker.Link(ctx, "stu-2", "42"); err != nil {
		t.Fatalf("identity should be free again: %v", err)
	}
}

func startUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{ID: 42},
			Chat: &tgbotapi.Chat{ID: 4200, UserName: "ada"},
		},
	}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: 42},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 4200}},
			Data:    data,
		},
	}
}

func TestStartWithoutToken(t *testing.T) {
	f := newFixture(t)
	if err := f.bot.HandleUpdate(context.Background(), startUpdate("/start")); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 2 {
		t.Fatalf("expected two replies, got %v", f.sender.texts())
	}
	if f.sender.sent[0].Text != msgLinkFailed || f.sender.sent[1].Text != msgNeedLink {
		t.Fatalf("unexpected replies %v", f.sender.texts())
	}
	btn := f.sender.sent[1].Keyboard[0][0]
	if btn.Text != "Link Profile" || btn.URL != DefaultProfileURL {
		t.Fatalf("unexpected button %+v", btn)
	}
}

func TestStartWithBadToken(t *testing.T) {
	f := newFixture(t)
	if err := f.bot.HandleUpdate(context.Background(), startUpdate("/start not-a-real-token")); err != nil {
		t.Fatal(err)
	}
	if texts := f.sender.texts(); len(texts) != 2 || texts[0] != msgLinkFailed {
		t.Fatalf("unexpected replies %v", texts)
	}
}

func TestStartLinksThenWelcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.linker.IssueLinkToken(ctx, "stu-1")

	if err := f.bot.HandleUpdate(ctx, startUpdate("/start "+inv.Token)); err != nil {
		t.Fatal(err)
	}
	if texts := f.sender.texts(); len(texts) != 1 || texts[0] != msgLinked {
		t.Fatalf("unexpected replies %v", texts)
	}

	if err := f.bot.HandleUpdate(ctx, startUpdate("/start")); err != nil {
		t.Fatal(err)
	}
	welcome := f.sender.sent[1]
	if welcome.Text != "Welcome back, ada! What would you like to do?" {
		t.Fatalf("unexpected welcome %q", welcome.Text)
	}
	if len(welcome.Keyboard) != 2 || welcome.Keyboard[0][0].Data != CallbackCheckBalance || welcome.Keyboard[1][0].Data != CallbackViewTransactions {
		t.Fatalf("unexpected keyboard %+v", welcome.Keyboard)
	}
}

func TestCallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bot.HandleUpdate(ctx, callbackUpdate(CallbackCheckBalance)); err != nil {
		t.Fatal(err)
	}
	if got := f.sender.sent[0].Text; got != msgNotLinked {
		t.Fatalf("expected not linked reply, got %q", got)
	}

	if err := f.linker.Link(ctx, "stu-1", "42"); err != nil {
		t.Fatal(err)
	}
	if err := f.bot.HandleUpdate(ctx, callbackUpdate(CallbackViewTransactions)); err != nil {
		t.Fatal(err)
	}
	if got := f.sender.sent[1].Text; got != msgNoTxs {
		t.Fatalf("expected empty history reply, got %q", got)
	}

	if err := f.bot.HandleUpdate(ctx, callbackUpdate(CallbackCheckBalance)); err != nil {
		t.Fatal(err)
	}
	bal := f.sender.sent[2]
	if bal.Text != "Your current balance is: ₦<b>1,234.50</b>" || !bal.HTML {
		t.Fatalf("unexpected balance reply %+v", bal)
	}

	for i, amt := range []int64{50000, 120000} {
		if err := f.store.InsertTransaction(ctx, ledger.Transaction{
			ID: []string{"t1", "t2"}[i], AccountID: "stu-1", Amount: amt, Type: ledger.TxTopUp, Status: ledger.TxCompleted,
			CreatedAt: time.Date(2024, 1, 2+i, 15, 4, 0, 0, time.UTC),
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.bot.HandleUpdate(ctx, callbackUpdate(CallbackViewTransactions)); err != nil {
		t.Fatal(err)
	}
	want := "Your Transactions:\n\n" +
		"1. Date: <b>Wed, 3 Jan 2024, 3:04 pm</b>, Amount: ₦<b>1,200</b>\n" +
		"2. Date: <b>Tue, 2 Jan 2024, 3:04 pm</b>, Amount: ₦<b>500</b>"
	if got := f.sender.sent[3].Text; got != want {
		t.Fatalf("unexpected history:\n%s\nwant:\n%s", got, want)
	}

	if err := f.bot.HandleUpdate(ctx, callbackUpdate("bogus")); err != nil {
		t.Fatal(err)
	}
	if got := f.sender.sent[4].Text; got != msgInvalidOpt {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(f.sender.answered) != 5 {
		t.Fatalf("every callback should be answered, got %d", len(f.sender.answered))
	}
}

func TestStartToken(t *testing.T) {
	cases := map[string]string{
		"/start":            "",
		"/start abc":        "abc",
		"/start   abc  def": "abc",
		"/start@bot xyz":    "xyz",
	}
	for in, want := range cases {
		if got := startToken(in); got != want {
			t.Errorf("startToken(%q) = %q, want %q", in, got, want)
		}
	}
	if isStart("hello /start") || !isStart("/start@tap2go_bot") {
		t.Fatal("isStart misclassified")
	}
}

const startBody = `{"update_id":7,"message":{"message_id":1,"date":0,"text":"/start",` +
	`"from":{"id":42,"is_bot":false,"first_name":"Ada"},"chat":{"id":4200,"type":"private","username":"ada"}}}`

func postUpdate(t *testing.T, h echo.HandlerFunc, body, secret string) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec.Code
}

func TestWebhookAlwaysOK(t *testing.T) {
	f := newFixture(t)
	h := Webhook(f.bot, "s3cret", zap.NewNop())

	if code := postUpdate(t, h, startBody, "wrong"); code != http.StatusOK {
		t.Fatalf("secret mismatch: status %d", code)
	}
	if len(f.sender.sent) != 0 {
		t.Fatal("mismatched secret must not dispatch")
	}
	if code := postUpdate(t, h, `{not json`, "s3cret"); code != http.StatusOK {
		t.Fatalf("malformed: status %d", code)
	}
	if code := postUpdate(t, h, startBody, "s3cret"); code != http.StatusOK {
		t.Fatalf("valid: status %d", code)
	}
	if len(f.sender.sent) != 2 {
		t.Fatalf("expected not-linked replies, got %v", f.sender.texts())
	}

	f.sender.panics = true
	if code := postUpdate(t, h, startBody, "s3cret"); code != http.StatusOK {
		t.Fatalf("panic: status %d", code)
	}
}
