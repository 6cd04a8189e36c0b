package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"prayernote/internal/models"
)

var testLoc = time.FixedZone("KST", 9*60*60)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), Options{Location: testLoc, Destructive: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	return db, func() { db.Close() }
}

func mustPerson(t *testing.T, db *DB, name string, days ...models.Weekday) *models.Person {
	t.Helper()
	p := &models.Person{Name: name, Days: models.WeekdaySet{}}
	for _, d := range days {
		p.Days = p.Days.With(d)
	}
	if err := db.InsertPerson(context.Background(), p); err != nil {
		t.Fatalf("failed to insert person %s: %v", name, err)
	}
	return p
}

func mustTopic(t *testing.T, db *DB, personID int64, title string) *models.Topic {
	t.Helper()
	topic := &models.Topic{PersonID: personID, Title: title}
	if err := db.AddTopic(context.Background(), topic); err != nil {
		t.Fatalf("failed to add topic %s: %v", title, err)
	}
	return topic
}

func TestMigrationsSetUserVersion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	var v int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if v != SchemaVersion() {
		t.Errorf("expected user_version %d, got %d", SchemaVersion(), v)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := New(path, Options{Location: testLoc})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	mustPerson(t, db, "Alice", 1)
	db.Close()

	db, err = New(path, Options{Location: testLoc})
	if err != nil {
		t.Fatalf("failed to reopen db: %v", err)
	}
	defer db.Close()
	n, err := db.PersonCount(context.Background())
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 person after reopen, got %d", n)
	}
}

func bumpVersion(t *testing.T, path string) {
	t.Helper()
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open raw db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(`PRAGMA user_version = 999`); err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}
}

func TestUnknownVersionDestructiveFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := New(path, Options{Location: testLoc})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	mustPerson(t, db, "Alice", 1)
	db.Close()
	bumpVersion(t, path)

	if _, err := New(path, Options{Location: testLoc}); !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew without fallback, got %v", err)
	}

	db, err = New(path, Options{Location: testLoc, Destructive: true})
	if err != nil {
		t.Fatalf("failed to open with fallback: %v", err)
	}
	defer db.Close()
	n, err := db.PersonCount(context.Background())
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty db after fallback, got %d persons", n)
	}
}

func TestPersonCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := mustPerson(t, db, "Alice", 1, 3)
	got, err := db.GetPerson(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to get person: %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", got.Name)
	}
	if got.Days.String() != "Monday, Wednesday" {
		t.Errorf("expected Monday, Wednesday, got %q", got.Days.String())
	}

	got.Memo = "neighbour"
	got.Days = models.WeekdaySet{models.EveryDay}
	if err := db.UpdatePerson(ctx, got); err != nil {
		t.Fatalf("failed to update person: %v", err)
	}
	got, _ = db.GetPerson(ctx, p.ID)
	if got.Memo != "neighbour" || !got.Days.Has(models.EveryDay) || got.Days.Has(1) {
		t.Errorf("update not applied: %+v", got)
	}

	if err := db.DeletePerson(ctx, p.ID); err != nil {
		t.Fatalf("failed to delete person: %v", err)
	}
	if _, err := db.GetPerson(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := db.DeletePerson(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInsertPersonRejectsEmptyName(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.InsertPerson(context.Background(), &models.Person{}); err == nil {
		t.Error("expected validation error for empty name")
	}
}

func TestDeletePersonCascades(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := mustPerson(t, db, "Alice", 1)
	topic := mustTopic(t, db, p.ID, "Health")
	if _, err := db.RecordPrayed(ctx, topic.ID, p.ID, time.Now()); err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	if err := db.DeletePerson(ctx, p.ID); err != nil {
		t.Fatalf("failed to delete person: %v", err)
	}

	for _, table := range []string{"prayer_topics", "day_assignments", "prayer_history"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("failed to count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("expected %s to be empty, got %d rows", table, n)
		}
	}
}

func TestSearchPersonsIsCaseSensitive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	mustPerson(t, db, "Alice")
	mustPerson(t, db, "alina")
	mustPerson(t, db, "Bob")

	res, err := db.SearchPersons(ctx, "li")
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(res) != 2 {
		t.Errorf("expected 2 matches for li, got %d", len(res))
	}

	res, _ = db.SearchPersons(ctx, "Al")
	if len(res) != 1 || res[0].Name != "Alice" {
		t.Errorf("expected only Alice for Al, got %+v", res)
	}

	res, _ = db.SearchPersons(ctx, "")
	if len(res) != 3 {
		t.Errorf("expected everyone for empty query, got %d", len(res))
	}
}

func TestPersonsByDayIncludesEveryDay(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	mustPerson(t, db, "Carol", models.EveryDay)
	mustPerson(t, db, "Alice", 1)
	mustPerson(t, db, "Bob", 2)

	res, err := db.PersonsByDay(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(res) != 2 || res[0].Name != "Alice" || res[1].Name != "Carol" {
		t.Errorf("expected Alice, Carol; got %+v", res)
	}
}

func TestReorderPersons(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := mustPerson(t, db, "Alice")
	b := mustPerson(t, db, "Bob")
	c := mustPerson(t, db, "Carol")

	if err := db.ReorderPersons(ctx, []int64{b.ID, c.ID, a.ID}); err != nil {
		t.Fatalf("failed to reorder: %v", err)
	}
	res, _ := db.ListPersons(ctx)
	if res[0].Name != "Bob" || res[1].Name != "Carol" || res[2].Name != "Alice" {
		t.Errorf("unexpected order: %s, %s, %s", res[0].Name, res[1].Name, res[2].Name)
	}
	if res[0].Priority != 3 || res[2].Priority != 1 {
		t.Errorf("expected priorities 3..1, got %d..%d", res[0].Priority, res[2].Priority)
	}
}

func TestAddTopicPriorityIsMaxPlusOne(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := mustPerson(t, db, "Alice", 1)
	first := mustTopic(t, db, p.ID, "Health")
	second := mustTopic(t, db, p.ID, "Job")

	if first.Priority != 1 || second.Priority != 2 {
		t.Errorf("expected priorities 1, 2; got %d, %d", first.Priority, second.Priority)
	}

	topics, err := db.TopicsByPerson(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to list topics: %v", err)
	}
	if topics[0].Title != "Job" {
		t.Errorf("expected highest priority first, got %q", topics[0].Title)
	}

	if err := db.ReorderTopics(ctx, []int64{first.ID, second.ID}); err != nil {
		t.Fatalf("failed to reorder topics: %v", err)
	}
	topics, _ = db.TopicsByPerson(ctx, p.ID)
	if topics[0].Title != "Health" {
		t.Errorf("expected Health first after reorder, got %q", topics[0].Title)
	}
}

func TestAnswerAndRestoreTopic(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := mustPerson(t, db, "Alice", 1)
	topic := mustTopic(t, db, p.ID, "Health")
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, testLoc)

	answered, err := db.MarkAnswered(ctx, topic.ID, at)
	if err != nil {
		t.Fatalf("failed to mark answered: %v", err)
	}
	if answered.Status != models.StatusAnswered || answered.AnsweredAt == nil {
		t.Fatalf("expected answered with timestamp, got %+v", answered)
	}
	if _, err := db.MarkAnswered(ctx, topic.ID, at); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	list, err := db.AnsweredTopics(ctx)
	if err != nil {
		t.Fatalf("failed to list answered: %v", err)
	}
	if len(list) != 1 || list[0].PersonName != "Alice" {
		t.Errorf("expected one answered topic of Alice, got %+v", list)
	}

	active, _ := db.ActiveTopicsByPerson(ctx, p.ID)
	if len(active) != 0 {
		t.Errorf("expected no active topics, got %d", len(active))
	}

	restored, err := db.RestoreTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("failed to restore: %v", err)
	}
	if restored.Status != models.StatusActive || restored.AnsweredAt != nil {
		t.Errorf("expected active without timestamp, got %+v", restored)
	}
	stored, _ := db.GetTopic(ctx, topic.ID)
	if stored.AnsweredAt != nil {
		t.Error("expected answered_at cleared in storage")
	}
}

func TestActiveTopicsForDay(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustPerson(t, db, "Alice", 1)
	bob := mustPerson(t, db, "Bob", 2)
	carol := mustPerson(t, db, "Carol", models.EveryDay)
	mustTopic(t, db, alice.ID, "Health")
	mustTopic(t, db, bob.ID, "Exam")
	done := mustTopic(t, db, carol.ID, "Move")
	mustTopic(t, db, carol.ID, "Peace")
	if _, err := db.MarkAnswered(ctx, done.ID, time.Now()); err != nil {
		t.Fatalf("failed to answer: %v", err)
	}

	res, err := db.ActiveTopicsForDay(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(res))
	}
	for _, topic := range res {
		if topic.PersonID == bob.ID || topic.Title == "Move" {
			t.Errorf("unexpected topic %+v", topic)
		}
	}
}

func TestRecordPrayedOncePerDay(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := mustPerson(t, db, "Alice", 1)
	topic := mustTopic(t, db, p.ID, "Health")

	morning := time.Date(2024, 3, 4, 7, 0, 0, 0, testLoc)
	evening := time.Date(2024, 3, 4, 21, 0, 0, 0, testLoc)
	nextDay := time.Date(2024, 3, 5, 0, 30, 0, 0, testLoc)

	for i, tc := range []struct {
		at   time.Time
		want bool
	}{{morning, true}, {evening, false}, {nextDay, true}} {
		got, err := db.RecordPrayed(ctx, topic.ID, p.ID, tc.at)
		if err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
		if got != tc.want {
			t.Errorf("record %d: expected inserted=%v, got %v", i, tc.want, got)
		}
	}

	has, err := db.HasHistoryOn(ctx, topic.ID, evening)
	if err != nil || !has {
		t.Errorf("expected history on 2024-03-04, got %v (%v)", has, err)
	}
	has, _ = db.HasHistoryOn(ctx, topic.ID, time.Date(2024, 3, 6, 12, 0, 0, 0, testLoc))
	if has {
		t.Error("expected no history on 2024-03-06")
	}

	hist, _ := db.HistoryByTopic(ctx, topic.ID)
	if len(hist) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(hist))
	}
}

func TestStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := mustPerson(t, db, "Alice", 1)
	bob := mustPerson(t, db, "Bob", 2)
	health := mustTopic(t, db, alice.ID, "Health")
	exam := mustTopic(t, db, bob.ID, "Exam")

	record := func(topic *models.Topic, at time.Time) {
		h := &models.History{TopicID: topic.ID, PersonID: topic.PersonID, PrayedAt: at}
		if err := db.InsertHistory(ctx, h); err != nil {
			t.Fatalf("failed to insert history: %v", err)
		}
	}
	record(health, time.Date(2024, 1, 31, 23, 30, 0, 0, testLoc))
	record(health, time.Date(2024, 2, 1, 0, 30, 0, 0, testLoc))
	record(health, time.Date(2024, 2, 2, 8, 0, 0, 0, testLoc))
	record(exam, time.Date(2024, 2, 3, 8, 0, 0, 0, testLoc))
	if _, err := db.MarkAnswered(ctx, exam.ID, time.Date(2024, 2, 10, 8, 0, 0, 0, testLoc)); err != nil {
		t.Fatalf("failed to answer: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, testLoc)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc)
	s, err := db.Stats(ctx, start, end)
	if err != nil {
		t.Fatalf("failed to compute stats: %v", err)
	}
	if s.Total != 4 {
		t.Errorf("expected total 4, got %d", s.Total)
	}
	if len(s.ByPerson) != 2 || s.ByPerson[0].PersonName != "Alice" || s.ByPerson[0].Count != 3 {
		t.Errorf("unexpected person stats: %+v", s.ByPerson)
	}
	if len(s.Monthly) != 2 || s.Monthly[0] != (models.MonthStat{Month: "2024-01", Count: 1}) ||
		s.Monthly[1] != (models.MonthStat{Month: "2024-02", Count: 3}) {
		t.Errorf("unexpected monthly stats: %+v", s.Monthly)
	}
	if s.AnswerRate != 50 {
		t.Errorf("expected answer rate 50, got %v", s.AnswerRate)
	}
	if s.ActiveTopics != 1 || s.AnsweredTopics != 1 {
		t.Errorf("expected 1 active and 1 answered, got %d and %d", s.ActiveTopics, s.AnsweredTopics)
	}
}

func TestAlarmCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	evening := &models.Alarm{Hour: 21, Minute: 0, Enabled: true}
	morning := &models.Alarm{Hour: 7, Minute: 0, Enabled: true}
	for _, a := range []*models.Alarm{evening, morning} {
		if err := db.InsertAlarm(ctx, a); err != nil {
			t.Fatalf("failed to insert alarm: %v", err)
		}
	}
	if err := db.InsertAlarm(ctx, &models.Alarm{Hour: 24}); err == nil {
		t.Error("expected validation error for hour 24")
	}

	list, _ := db.ListAlarms(ctx)
	if len(list) != 2 || list[0].Clock() != "07:00" {
		t.Errorf("expected 07:00 first, got %+v", list)
	}

	if _, err := db.SetAlarmEnabled(ctx, morning.ID, false); err != nil {
		t.Fatalf("failed to disable: %v", err)
	}
	enabled, _ := db.EnabledAlarms(ctx)
	if len(enabled) != 1 || enabled[0].ID != evening.ID {
		t.Errorf("expected only evening enabled, got %+v", enabled)
	}

	if err := db.DeleteAlarm(ctx, evening.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := db.GetAlarm(ctx, evening.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeviceIDIsStable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := db.DeviceID(ctx)
	if err != nil || first == "" {
		t.Fatalf("expected device id, got %q (%v)", first, err)
	}
	second, _ := db.DeviceID(ctx)
	if first != second {
		t.Errorf("expected stable device id, got %q then %q", first, second)
	}
}

func TestChatState(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if st, err := db.ChatState(ctx, 7); err != nil || st != "" {
		t.Fatalf("expected idle chat, got %q (%v)", st, err)
	}
	if err := db.SetChatState(ctx, 7, "await_topic:3"); err != nil {
		t.Fatalf("failed to set state: %v", err)
	}
	if st, _ := db.ChatState(ctx, 7); st != "await_topic:3" {
		t.Errorf("expected await_topic:3, got %q", st)
	}
	if st, _ := db.ChatState(ctx, 8); st != "" {
		t.Errorf("expected other chat idle, got %q", st)
	}
	db.SetChatState(ctx, 7, "")
	if st, _ := db.ChatState(ctx, 7); st != "" {
		t.Errorf("expected cleared state, got %q", st)
	}
}

func TestSubscribers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []int64{10, 10, 20} {
		if err := db.AddChat(ctx, id); err != nil {
			t.Fatalf("failed to add chat: %v", err)
		}
	}
	chats, _ := db.ListChats(ctx)
	if len(chats) != 2 {
		t.Errorf("expected 2 chats, got %v", chats)
	}
	db.RemoveChat(ctx, 10)
	chats, _ = db.ListChats(ctx)
	if len(chats) != 1 || chats[0] != 20 {
		t.Errorf("expected only chat 20, got %v", chats)
	}

	sub := models.PushSubscription{Endpoint: "https://push.example.com/abc", P256dh: "key", Auth: "auth"}
	if err := db.AddPushSubscription(ctx, sub); err != nil {
		t.Fatalf("failed to add subscription: %v", err)
	}
	sub.Auth = "auth2"
	db.AddPushSubscription(ctx, sub)
	subs, _ := db.ListPushSubscriptions(ctx)
	if len(subs) != 1 || subs[0].Auth != "auth2" {
		t.Errorf("expected refreshed subscription, got %+v", subs)
	}
}

func TestWatchPersons(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := db.WatchPersons(ctx)
	if err != nil {
		t.Fatalf("failed to watch: %v", err)
	}
	if first := <-ch; len(first) != 0 {
		t.Errorf("expected empty initial list, got %d", len(first))
	}

	mustPerson(t, db, "Alice", 1)

	select {
	case got := <-ch:
		if len(got) != 1 || got[0].Name != "Alice" {
			t.Errorf("expected Alice, got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for person update")
	}

	cancel()
	for range ch {
	}
}

func TestWatchTopicsIgnoresAlarmChanges(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := mustPerson(t, db, "Alice", 1)
	ch, err := db.WatchTopics(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to watch: %v", err)
	}
	<-ch

	db.InsertAlarm(ctx, &models.Alarm{Hour: 7, Enabled: true})
	select {
	case got := <-ch:
		t.Errorf("unexpected emission %+v", got)
	case <-time.After(100 * time.Millisecond):
	}

	mustTopic(t, db, p.ID, "Health")
	select {
	case got := <-ch:
		if len(got) != 1 {
			t.Errorf("expected one topic, got %d", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for topic update")
	}
}
