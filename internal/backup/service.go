package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperr "prayernote/internal/errors"
	"prayernote/internal/logger"
	"prayernote/internal/models"
	"prayernote/internal/storage"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("backup session not found")

// MaxSessions bounds the session listing.
const MaxSessions = 10

const statusCompleted = "COMPLETED"

// PersonDoc is the remote snapshot of a person.
type PersonDoc struct {
	ID                  string    `json:"id"`
	OriginalID          int64     `json:"originalId"`
	Name                string    `json:"name"`
	Memo                string    `json:"memo"`
	DayOfWeekAssignment []int     `json:"dayOfWeekAssignment"`
	Priority            int       `json:"priority"`
	CreatedAt           time.Time `json:"createdAt"`
	BackupTimestamp     time.Time `json:"backupTimestamp"`
}

// TopicDoc is the remote snapshot of a prayer topic.
type TopicDoc struct {
	ID              string     `json:"id"`
	OriginalID      int64      `json:"originalId"`
	PersonID        int64      `json:"personId"`
	PersonBackupID  string     `json:"personBackupId"`
	Title           string     `json:"title"`
	Priority        int        `json:"priority"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	AnsweredAt      *time.Time `json:"answeredAt,omitempty"`
	BackupTimestamp time.Time  `json:"backupTimestamp"`
}

// Session describes one backup run.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	PersonBackupIDs []string  `json:"personBackupIds"`
	TopicBackupIDs  []string  `json:"topicBackupIds"`
	TotalPersons    int       `json:"totalPersons"`
	TotalTopics     int       `json:"totalTopics"`
	IncludeAnswered bool      `json:"includeAnswered"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`
}

// Local is the part of the local store a restore writes to.
type Local interface {
	FindPersonByName(ctx context.Context, name string) (*models.Person, error)
	InsertPerson(ctx context.Context, p *models.Person) error
	UpdatePerson(ctx context.Context, p *models.Person) error
	TopicsByPerson(ctx context.Context, personID int64) ([]models.Topic, error)
	InsertTopic(ctx context.Context, t *models.Topic) error
	UpdateTopic(ctx context.Context, t *models.Topic) error
}

// RestoreReport counts what a restore touched.
type RestoreReport struct {
	PersonsCreated int `json:"persons_created"`
	PersonsUpdated int `json:"persons_updated"`
	TopicsCreated  int `json:"topics_created"`
	TopicsUpdated  int `json:"topics_updated"`
	TopicsSkipped  int `json:"topics_skipped"`
}

func (r RestoreReport) String() string {
	return fmt.Sprintf("Restore completed: %d persons, %d topics",
		r.PersonsCreated+r.PersonsUpdated, r.TopicsCreated+r.TopicsUpdated)
}

// Service writes and reads backup sessions of one user.
type Service struct {
	docs   Store
	userID string
	clock  clockwork.Clock
}

func NewService(docs Store, userID string, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{docs: docs, userID: userID, clock: clock}
}

func (s *Service) UserID() string {
	return s.userID
}

func (s *Service) put(ctx context.Context, path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.docs.Set(ctx, path, data)
}

// Backup uploads persons and the topics belonging to them, then the session
// document. Answered topics are skipped unless includeAnswered is set.
// A failure midway leaves the documents written so far.
func (s *Service) Backup(ctx context.Context, persons []models.Person, topics []models.Topic, includeAnswered bool) (string, error) {
	now := s.clock.Now()
	sess := Session{
		ID:              uuid.NewString(),
		UserID:          s.userID,
		PersonBackupIDs: []string{},
		TopicBackupIDs:  []string{},
		IncludeAnswered: includeAnswered,
		Timestamp:       now,
		Status:          statusCompleted,
	}

	docIDs := make(map[int64]string, len(persons))
	for _, p := range persons {
		days := make([]int, len(p.Days))
		for i, d := range p.Days {
			days[i] = int(d)
		}
		doc := PersonDoc{
			ID:                  uuid.NewString(),
			OriginalID:          p.ID,
			Name:                p.Name,
			Memo:                p.Memo,
			DayOfWeekAssignment: days,
			Priority:            p.Priority,
			CreatedAt:           p.CreatedAt,
			BackupTimestamp:     now,
		}
		if err := s.put(ctx, personsPath(s.userID, sess.ID)+"/"+doc.ID, doc); err != nil {
			return "", apperr.Backup("backup person "+p.Name, err)
		}
		docIDs[p.ID] = doc.ID
		sess.PersonBackupIDs = append(sess.PersonBackupIDs, doc.ID)
	}

	for _, t := range topics {
		personDoc, ok := docIDs[t.PersonID]
		if !ok {
			continue
		}
		if t.Status == models.StatusAnswered && !includeAnswered {
			continue
		}
		doc := TopicDoc{
			ID:              uuid.NewString(),
			OriginalID:      t.ID,
			PersonID:        t.PersonID,
			PersonBackupID:  personDoc,
			Title:           t.Title,
			Priority:        t.Priority,
			Status:          t.Status.String(),
			CreatedAt:       t.CreatedAt,
			AnsweredAt:      t.AnsweredAt,
			BackupTimestamp: now,
		}
		if err := s.put(ctx, topicsPath(s.userID, sess.ID)+"/"+doc.ID, doc); err != nil {
			return "", apperr.Backup("backup topic "+t.Title, err)
		}
		sess.TopicBackupIDs = append(sess.TopicBackupIDs, doc.ID)
	}

	sess.TotalPersons = len(sess.PersonBackupIDs)
	sess.TotalTopics = len(sess.TopicBackupIDs)
	if err := s.put(ctx, sessionPath(s.userID, sess.ID), sess); err != nil {
		return "", apperr.Backup("save session", err)
	}
	logger.Info("Backup completed", "session", sess.ID, "persons", sess.TotalPersons, "topics", sess.TotalTopics)
	return sess.ID, nil
}

// Source is the part of the local store a backup reads from.
type Source interface {
	ListPersons(ctx context.Context) ([]models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	AllTopics(ctx context.Context) ([]models.Topic, error)
}

// BackupSelected backs up the given persons, or everyone when personIDs is
// empty, with their topics.
func (s *Service) BackupSelected(ctx context.Context, src Source, personIDs []int64, includeAnswered bool) (string, error) {
	var persons []models.Person
	if len(personIDs) == 0 {
		all, err := src.ListPersons(ctx)
		if err != nil {
			return "", apperr.Store("list persons", err)
		}
		persons = all
	} else {
		for _, id := range personIDs {
			p, err := src.GetPerson(ctx, id)
			if err != nil {
				return "", fmt.Errorf("person %d: %w", id, err)
			}
			persons = append(persons, *p)
		}
	}
	topics, err := src.AllTopics(ctx)
	if err != nil {
		return "", apperr.Store("list topics", err)
	}
	return s.Backup(ctx, persons, topics, includeAnswered)
}

// Sessions lists the newest sessions first.
func (s *Service) Sessions(ctx context.Context) ([]Session, error) {
	docs, err := s.docs.List(ctx, sessionsPath(s.userID))
	if err != nil {
		return nil, apperr.Backup("list sessions", err)
	}
	res := make([]Session, 0, len(docs))
	for _, d := range docs {
		var sess Session
		if err := json.Unmarshal(d.Data, &sess); err != nil {
			logger.Warn("Skipping unreadable session", "path", d.Path, "error", err)
			continue
		}
		sess.ID = d.ID()
		res = append(res, sess)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if len(res) > MaxSessions {
		res = res[:MaxSessions]
	}
	return res, nil
}

func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	data, err := s.docs.Get(ctx, sessionPath(s.userID, id))
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apperr.Backup("get session", ErrSessionNotFound)
	}
	if err != nil {
		return nil, apperr.Backup("get session", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apperr.Backup("decode session", err)
	}
	sess.ID = id
	return &sess, nil
}

func (s *Service) SessionPersons(ctx context.Context, id string) ([]PersonDoc, error) {
	docs, err := s.docs.List(ctx, personsPath(s.userID, id))
	if err != nil {
		return nil, apperr.Backup("list persons", err)
	}
	res := make([]PersonDoc, 0, len(docs))
	for _, d := range docs {
		var p PersonDoc
		if err := json.Unmarshal(d.Data, &p); err != nil {
			return nil, apperr.Backup("decode person", err)
		}
		p.ID = d.ID()
		res = append(res, p)
	}
	return res, nil
}

func (s *Service) SessionTopics(ctx context.Context, id string) ([]TopicDoc, error) {
	docs, err := s.docs.List(ctx, topicsPath(s.userID, id))
	if err != nil {
		return nil, apperr.Backup("list topics", err)
	}
	res := make([]TopicDoc, 0, len(docs))
	for _, d := range docs {
		var t TopicDoc
		if err := json.Unmarshal(d.Data, &t); err != nil {
			return nil, apperr.Backup("decode topic", err)
		}
		t.ID = d.ID()
		res = append(res, t)
	}
	return res, nil
}

// DeleteSession removes the person and topic documents, then the session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.Session(ctx, id); err != nil {
		return err
	}
	for _, coll := range []string{personsPath(s.userID, id), topicsPath(s.userID, id)} {
		docs, err := s.docs.List(ctx, coll)
		if err != nil {
			return apperr.Backup("list documents", err)
		}
		for _, d := range docs {
			if err := s.docs.Delete(ctx, d.Path); err != nil {
				return apperr.Backup("delete document", err)
			}
		}
	}
	if err := s.docs.Delete(ctx, sessionPath(s.userID, id)); err != nil {
		return apperr.Backup("delete session", err)
	}
	logger.Info("Backup session deleted", "session", id)
	return nil
}

// Restore merges a session into the local store. Persons match by exact
// name and get memo and days updated; topics match by person and title and
// get priority, status and answer time updated. Everything else is created.
// Nothing is rolled back on failure.
func (s *Service) Restore(ctx context.Context, id string, local Local) (*RestoreReport, error) {
	if _, err := s.Session(ctx, id); err != nil {
		return nil, err
	}
	persons, err := s.SessionPersons(ctx, id)
	if err != nil {
		return nil, err
	}
	topics, err := s.SessionTopics(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{}
	localIDs := make(map[int64]int64, len(persons))
	for _, doc := range persons {
		localID, created, err := restorePerson(ctx, local, doc)
		if err != nil {
			return report, apperr.Backup("restore person "+doc.Name, err)
		}
		if created {
			report.PersonsCreated++
		} else {
			report.PersonsUpdated++
		}
		localIDs[doc.OriginalID] = localID
	}

	for _, doc := range topics {
		personID, ok := localIDs[doc.PersonID]
		if !ok {
			report.TopicsSkipped++
			continue
		}
		created, err := restoreTopic(ctx, local, personID, doc, s.clock.Now())
		if err != nil {
			return report, apperr.Backup("restore topic "+doc.Title, err)
		}
		if created {
			report.TopicsCreated++
		} else {
			report.TopicsUpdated++
		}
	}

	logger.Info(report.String(), "session", id)
	return report, nil
}

func daySet(days []int) models.WeekdaySet {
	set := models.WeekdaySet{}
	for _, d := range days {
		if w := models.Weekday(d); w.Valid() {
			set = set.With(w)
		}
	}
	return set
}

func restorePerson(ctx context.Context, local Local, doc PersonDoc) (int64, bool, error) {
	existing, err := local.FindPersonByName(ctx, doc.Name)
	switch {
	case err == nil:
		existing.Memo = doc.Memo
		existing.Days = daySet(doc.DayOfWeekAssignment)
		if err := local.UpdatePerson(ctx, existing); err != nil {
			return 0, false, err
		}
		return existing.ID, false, nil
	case errors.Is(err, storage.ErrNotFound):
		p := &models.Person{
			Name:      doc.Name,
			Memo:      doc.Memo,
			Days:      daySet(doc.DayOfWeekAssignment),
			Priority:  doc.Priority,
			CreatedAt: doc.CreatedAt,
		}
		if err := local.InsertPerson(ctx, p); err != nil {
			return 0, false, err
		}
		return p.ID, true, nil
	default:
		return 0, false, err
	}
}

func restoreTopic(ctx context.Context, local Local, personID int64, doc TopicDoc, now time.Time) (bool, error) {
	status, err := models.ParseTopicStatus(doc.Status)
	if err != nil {
		status = models.StatusActive
	}
	answeredAt := doc.AnsweredAt
	if status == models.StatusActive {
		answeredAt = nil
	} else if answeredAt == nil {
		answeredAt = &now
	}

	existing, err := local.TopicsByPerson(ctx, personID)
	if err != nil {
		return false, err
	}
	for _, t := range existing {
		if t.Title != doc.Title {
			continue
		}
		t.Priority = doc.Priority
		t.Status = status
		t.AnsweredAt = answeredAt
		return false, local.UpdateTopic(ctx, &t)
	}

	t := &models.Topic{
		PersonID:   personID,
		Title:      doc.Title,
		Priority:   doc.Priority,
		Status:     status,
		CreatedAt:  doc.CreatedAt,
		AnsweredAt: answeredAt,
	}
	return true, local.InsertTopic(ctx, t)
}
