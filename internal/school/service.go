package school

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campus/internal/docstore"
	"campus/internal/identity"
)

// Service coordinates school records over the document store and the
// identity service.
type Service struct {
	store    docstore.Store
	identity identity.Service
	denorm   *Denormalizer
	deleter  *Deleter
}

// NewService wires the domain service.
func NewService(store docstore.Store, idsvc identity.Service, deleteBatchSize int) *Service {
	return &Service{
		store:    store,
		identity: idsvc,
		denorm:   NewDenormalizer(store),
		deleter:  NewDeleter(store, idsvc, deleteBatchSize),
	}
}

// ---------- Students ----------

// CreateStudentInput carries the admission form.
type CreateStudentInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	ClassID   string
}

// CreateStudent provisions the identity account first (the profile is keyed
// by the account uid), then the profile document.
func (s *Service) CreateStudent(ctx context.Context, in CreateStudentInput) (StudentProfile, error) {
	if in.FirstName == "" || in.LastName == "" {
		return StudentProfile{}, errors.New("first and last name required")
	}
	acct, err := s.identity.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		return StudentProfile{}, fmt.Errorf("create account: %w", err)
	}

	now := time.Now().UTC()
	profile := StudentProfile{
		ID:        acct.UID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     acct.Email,
		ClassID:   in.ClassID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields, err := toFields(profile)
	if err != nil {
		return StudentProfile{}, err
	}
	if err := s.store.Set(ctx, profilePath(acct.UID), fields); err != nil {
		return StudentProfile{}, fmt.Errorf("write profile: %w", err)
	}
	return profile, nil
}

// Student loads one profile.
func (s *Service) Student(ctx context.Context, uid string) (StudentProfile, error) {
	doc, err := s.store.Get(ctx, profilePath(uid))
	if err != nil {
		return StudentProfile{}, err
	}
	var profile StudentProfile
	return profile, fromFields(doc.Fields, &profile)
}

// ListStudents pages through all profiles ordered by uid.
func (s *Service) ListStudents(ctx context.Context, after string, limit int) ([]StudentProfile, error) {
	docs, err := s.store.List(ctx, collStudents, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]StudentProfile, 0, len(docs))
	for _, doc := range docs {
		var profile StudentProfile
		if err := fromFields(doc.Fields, &profile); err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, nil
}

// UpdateStudent applies mutable profile fields.
func (s *Service) UpdateStudent(ctx context.Context, uid string, firstName, lastName, classID string) (StudentProfile, error) {
	profile, err := s.Student(ctx, uid)
	if err != nil {
		return StudentProfile{}, err
	}
	if firstName != "" {
		profile.FirstName = firstName
	}
	if lastName != "" {
		profile.LastName = lastName
	}
	if classID != "" {
		profile.ClassID = classID
	}
	profile.UpdatedAt = time.Now().UTC()

	fields, err := toFields(profile)
	if err != nil {
		return StudentProfile{}, err
	}
	return profile, s.store.Set(ctx, profilePath(uid), fields)
}

// DeleteStudent runs the cascading deletion orchestrator for the account.
func (s *Service) DeleteStudent(ctx context.Context, uid string) DeleteResult {
	return s.deleter.DeleteAccount(ctx, uid)
}

// IsAdmin reports whether the uid holds an admin grant. The grant is a
// presence-only document written out of band.
func (s *Service) IsAdmin(ctx context.Context, uid string) (bool, error) {
	_, err := s.store.Get(ctx, grantPath(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------- Classes ----------

// SaveClass creates or updates a class group.
func (s *Service) SaveClass(ctx context.Context, class ClassGroup) (ClassGroup, error) {
	if class.Name == "" {
		return ClassGroup{}, errors.New("class name required")
	}
	if class.ID == "" {
		class.ID = uuid.NewString()
		class.CreatedAt = time.Now().UTC()
	}
	fields, err := toFields(class)
	if err != nil {
		return ClassGroup{}, err
	}
	return class, s.store.Set(ctx, docstore.Join(collClasses, class.ID), fields)
}

// Class loads one class group.
func (s *Service) Class(ctx context.Context, id string) (ClassGroup, error) {
	doc, err := s.store.Get(ctx, docstore.Join(collClasses, id))
	if err != nil {
		return ClassGroup{}, err
	}
	var class ClassGroup
	return class, fromFields(doc.Fields, &class)
}

// ListClasses returns all class groups.
func (s *Service) ListClasses(ctx context.Context) ([]ClassGroup, error) {
	var out []ClassGroup
	after := ""
	for {
		docs, err := s.store.List(ctx, collClasses, after, 100)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return out, nil
		}
		for _, doc := range docs {
			var class ClassGroup
			if err := fromFields(doc.Fields, &class); err != nil {
				return nil, err
			}
			out = append(out, class)
		}
		after = docs[len(docs)-1].Path
	}
}

// DeleteClass removes the class document. Students keep their classId; the
// reference is weak and no cascade runs here.
func (s *Service) DeleteClass(ctx context.Context, id string) error {
	return s.store.Delete(ctx, docstore.Join(collClasses, id))
}

// ---------- Announcements ----------

// CreateAnnouncement publishes an announcement to the given classes.
// Passing every class id makes it a broadcast.
func (s *Service) CreateAnnouncement(ctx context.Context, title, content string, classIDs []string) (Announcement, error) {
	if title == "" {
		return Announcement{}, errors.New("title required")
	}
	ann := Announcement{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		ClassIDs:  classIDs,
		CreatedAt: time.Now().UTC(),
	}
	fields, err := toFields(ann)
	if err != nil {
		return Announcement{}, err
	}
	return ann, s.store.Set(ctx, docstore.Join(collAnnounce, ann.ID), fields)
}

// ListAnnouncements returns every announcement.
func (s *Service) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	return s.announcements(ctx, "")
}

// AnnouncementsForClass returns announcements visible to one class.
func (s *Service) AnnouncementsForClass(ctx context.Context, classID string) ([]Announcement, error) {
	return s.announcements(ctx, classID)
}

func (s *Service) announcements(ctx context.Context, classID string) ([]Announcement, error) {
	var out []Announcement
	after := ""
	for {
		docs, err := s.store.List(ctx, collAnnounce, after, 100)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return out, nil
		}
		for _, doc := range docs {
			var ann Announcement
			if err := fromFields(doc.Fields, &ann); err != nil {
				return nil, err
			}
			if classID == "" || ann.TargetsClass(classID) {
				out = append(out, ann)
			}
		}
		after = docs[len(docs)-1].Path
	}
}

// DeleteAnnouncement removes one announcement.
func (s *Service) DeleteAnnouncement(ctx context.Context, id string) error {
	return s.store.Delete(ctx, docstore.Join(collAnnounce, id))
}

// ---------- Fees ----------

// UpsertFee validates, derives balance and status, and writes both copies of
// the record. Callers reuse the record id to update instead of duplicating.
func (s *Service) UpsertFee(ctx context.Context, fee FeeRecord) (FeeRecord, error) {
	if fee.StudentID == "" {
		return FeeRecord{}, errors.New("student id required")
	}
	if !ValidTerm(fee.Term) {
		return FeeRecord{}, fmt.Errorf("invalid term %q", fee.Term)
	}
	if fee.Amount < 0 || fee.AmountPaid < 0 {
		return FeeRecord{}, errors.New("amounts must not be negative")
	}
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	fee.Normalize()

	fields, err := toFields(fee)
	if err != nil {
		return FeeRecord{}, err
	}
	if fee.CreatedAt.IsZero() {
		delete(fields, "createdAt") // let the writer stamp one shared value
	}
	return fee, s.denorm.Upsert(ctx, KindFee, fee.StudentID, fields)
}

// RemoveFee deletes both copies of a fee record.
func (s *Service) RemoveFee(ctx context.Context, studentID, id string) error {
	return s.denorm.Remove(ctx, KindFee, studentID, id)
}

// FeesForStudent reads the student-scoped fee subcollection.
func (s *Service) FeesForStudent(ctx context.Context, uid string) ([]FeeRecord, error) {
	var out []FeeRecord
	err := s.eachDoc(ctx, scopedCollection(uid, collFees), func(doc docstore.Doc) error {
		var fee FeeRecord
		if err := fromFields(doc.Fields, &fee); err != nil {
			return err
		}
		out = append(out, fee)
		return nil
	})
	return out, err
}

// ListFees reads the global flat fees collection across all students.
func (s *Service) ListFees(ctx context.Context, after string, limit int) ([]FeeRecord, error) {
	docs, err := s.store.List(ctx, collFees, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]FeeRecord, 0, len(docs))
	for _, doc := range docs {
		var fee FeeRecord
		if err := fromFields(doc.Fields, &fee); err != nil {
			return nil, err
		}
		out = append(out, fee)
	}
	return out, nil
}

// ---------- Results ----------

// UpsertResult validates and writes both copies of an academic result.
func (s *Service) UpsertResult(ctx context.Context, res AcademicResult) (AcademicResult, error) {
	if res.StudentID == "" {
		return AcademicResult{}, errors.New("student id required")
	}
	if !ValidTerm(res.Term) {
		return AcademicResult{}, fmt.Errorf("invalid term %q", res.Term)
	}
	if !ValidGrade(res.Grade) {
		return AcademicResult{}, fmt.Errorf("invalid grade %q", res.Grade)
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	fields, err := toFields(res)
	if err != nil {
		return AcademicResult{}, err
	}
	if res.CreatedAt.IsZero() {
		delete(fields, "createdAt")
	}
	return res, s.denorm.Upsert(ctx, KindResult, res.StudentID, fields)
}

// RemoveResult deletes both copies of a result record.
func (s *Service) RemoveResult(ctx context.Context, studentID, id string) error {
	return s.denorm.Remove(ctx, KindResult, studentID, id)
}

// ResultsForStudent reads the student-scoped results subcollection.
func (s *Service) ResultsForStudent(ctx context.Context, uid string) ([]AcademicResult, error) {
	var out []AcademicResult
	err := s.eachDoc(ctx, scopedCollection(uid, collResults), func(doc docstore.Doc) error {
		var res AcademicResult
		if err := fromFields(doc.Fields, &res); err != nil {
			return err
		}
		out = append(out, res)
		return nil
	})
	return out, err
}

// ListResults reads the global flat results collection.
func (s *Service) ListResults(ctx context.Context, after string, limit int) ([]AcademicResult, error) {
	docs, err := s.store.List(ctx, collResults, after, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AcademicResult, 0, len(docs))
	for _, doc := range docs {
		var res AcademicResult
		if err := fromFields(doc.Fields, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// ---------- Site content ----------

// SiteContent loads the homepage singleton; a zero value when unset.
func (s *Service) SiteContent(ctx context.Context) (SiteContent, error) {
	doc, err := s.store.Get(ctx, siteContentPath)
	if errors.Is(err, docstore.ErrNotFound) {
		return SiteContent{}, nil
	}
	if err != nil {
		return SiteContent{}, err
	}
	var content SiteContent
	return content, fromFields(doc.Fields, &content)
}

// UpdateSiteContent replaces the homepage singleton.
func (s *Service) UpdateSiteContent(ctx context.Context, content SiteContent) error {
	fields, err := toFields(content)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, siteContentPath, fields)
}

// eachDoc walks a collection page by page.
func (s *Service) eachDoc(ctx context.Context, collection string, fn func(docstore.Doc) error) error {
	after := ""
	for {
		docs, err := s.store.List(ctx, collection, after, 100)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		for _, doc := range docs {
			if err := fn(doc); err != nil {
				return err
			}
		}
		after = docs[len(docs)-1].Path
	}
}
