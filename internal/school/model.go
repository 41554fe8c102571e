package school

import (
	"encoding/json"
	"fmt"
	"time"

	"campus/internal/docstore"
)

// Term is a school term within a session.
type Term string

// Terms.
const (
	TermFirst  Term = "1st"
	TermSecond Term = "2nd"
	TermThird  Term = "3rd"
)

// FeeStatus reflects how much of a fee has been paid.
type FeeStatus string

// Fee statuses.
const (
	FeePaid    FeeStatus = "Paid"
	FeePending FeeStatus = "Pending"
	FeePartial FeeStatus = "Partial"
)

// StudentProfile is the per-student primary record, keyed by account uid.
type StudentProfile struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	ClassID   string    `json:"classId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClassGroup groups students and carries an ordered subject list.
// StudentProfile.ClassID is a weak reference: deleting a class with assigned
// students is allowed and left to the caller.
type ClassGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subjects    []string  `json:"subjects"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FeeRecord is a dual-location record: one copy under the owning student,
// one in the global flat fees collection.
type FeeRecord struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"studentId"`
	Term             Term       `json:"term"`
	Session          string     `json:"session"`
	Amount           float64    `json:"amount"`
	AmountPaid       float64    `json:"amountPaid"`
	BalanceRemaining float64    `json:"balanceRemaining"`
	Status           FeeStatus  `json:"status"`
	DueDate          time.Time  `json:"dueDate"`
	PaidDate         *time.Time `json:"paidDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Normalize recomputes the derived fields. The balance never goes negative
// on overpayment.
func (f *FeeRecord) Normalize() {
	balance := f.Amount - f.AmountPaid
	if balance < 0 {
		balance = 0
	}
	f.BalanceRemaining = balance
	switch {
	case f.AmountPaid <= 0:
		f.Status = FeePending
	case balance == 0:
		f.Status = FeePaid
	default:
		f.Status = FeePartial
	}
}

// AcademicResult is a dual-location record like FeeRecord.
type AcademicResult struct {
	ID        string    `json:"id"`
	StudentID string    `json:"studentId"`
	Term      Term      `json:"term"`
	Year      string    `json:"year"`
	ClassName string    `json:"className"`
	Grade     string    `json:"grade"`
	Comments  string    `json:"comments,omitempty"`
	Position  int       `json:"position,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidGrade reports whether g is one of the accepted letter grades.
func ValidGrade(g string) bool {
	switch g {
	case "A", "B", "C", "D", "F":
		return true
	}
	return false
}

// ValidTerm reports whether t is a known term.
func ValidTerm(t Term) bool {
	switch t {
	case TermFirst, TermSecond, TermThird:
		return true
	}
	return false
}

// Announcement targets one or more classes. ClassIDs covering every class
// means "broadcast to all".
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ClassIDs  []string  `json:"classIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// TargetsClass reports whether the announcement is visible to a class.
func (a Announcement) TargetsClass(classID string) bool {
	for _, id := range a.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// SiteContent is the singleton homepage marketing record.
type SiteContent struct {
	Headline     string   `json:"headline"`
	Subheadline  string   `json:"subheadline"`
	AboutText    string   `json:"aboutText"`
	ContactEmail string   `json:"contactEmail"`
	ContactPhone string   `json:"contactPhone"`
	ImageURLs    []string `json:"imageUrls"`
}

// Collection and path layout shared with the record store.
const (
	collStudents    = "students"
	collFees        = "fees"
	collResults     = "academicResults"
	collClasses     = "classes"
	collAnnounce    = "announcements"
	collAdminGrants = "roles_admin"

	siteContentPath = "site/content"
)

// RecordKind selects which dual-location record type an operation targets.
type RecordKind string

// Record kinds.
const (
	KindFee    RecordKind = "fee"
	KindResult RecordKind = "result"
)

// collectionFor maps a record kind to its collection name, used both for the
// student-scoped subcollection and the global flat collection.
func collectionFor(kind RecordKind) (string, error) {
	switch kind {
	case KindFee:
		return collFees, nil
	case KindResult:
		return collResults, nil
	}
	return "", fmt.Errorf("unknown record kind %q", kind)
}

func profilePath(uid string) string {
	return docstore.Join(collStudents, uid)
}

func scopedCollection(uid, collection string) string {
	return docstore.Join(collStudents, uid, collection)
}

func scopedPath(uid, collection, id string) string {
	return docstore.Join(collStudents, uid, collection, id)
}

func globalPath(collection, id string) string {
	return docstore.Join(collection, id)
}

func grantPath(uid string) string {
	return docstore.Join(collAdminGrants, uid)
}

// toFields converts a typed record into document fields via JSON, so both
// store copies and API responses share one field naming.
func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// fromFields decodes document fields into a typed record.
func fromFields(fields map[string]any, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
