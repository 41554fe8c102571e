package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campus/internal/cloudinary"
	"campus/internal/config"
	"campus/internal/docstore"
	"campus/internal/identity"
	"campus/internal/queue"
	"campus/internal/school"
)

// Handler carries the wired services for all routes.
type Handler struct {
	svc      *school.Service
	identity identity.Service
	cloud    *cloudinary.Client // nil if Cloudinary not configured
	queue    queue.Queue
	cfg      config.App
}

// New creates the API handler.
func New(svc *school.Service, idsvc identity.Service, cloud *cloudinary.Client, q queue.Queue, cfg config.App) *Handler {
	return &Handler{svc: svc, identity: idsvc, cloud: cloud, queue: q, cfg: cfg}
}

// ---------- Auth ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a session token pair. The role claim
// comes from the admin grant document, looked up at login time.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.identity.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity service unavailable"})
		return
	}

	role := identity.RoleStudent
	if admin, err := h.svc.IsAdmin(c.Request.Context(), acct.UID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	} else if admin {
		role = identity.RoleAdmin
	}

	tokens, err := identity.IssueTokens(acct.UID, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"role":          role,
		"uid":           acct.UID,
	})
}

// ---------- Students (admin) ----------

type createStudentRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	ClassID   string `json:"class_id"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.svc.CreateStudent(c.Request.Context(), school.CreateStudentInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		ClassID:   req.ClassID,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context(), c.Query("after"), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if students == nil {
		students = []school.StudentProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) GetStudent(c *gin.Context) {
	profile, err := h.svc.Student(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOr500(c, err, "student not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

type updateStudentRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ClassID   string `json:"class_id"`
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.svc.UpdateStudent(c.Request.Context(), c.Param("id"), req.FirstName, req.LastName, req.ClassID)
	if err != nil {
		notFoundOr500(c, err, "student not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteStudent runs the cascading deletion and reports its result shape
// as-is. A failed cascade is retryable by calling this endpoint again.
func (h *Handler) DeleteStudent(c *gin.Context) {
	res := h.svc.DeleteStudent(c.Request.Context(), c.Param("id"))
	if !res.Success {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- Classes (admin) ----------

type classRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	class, err := h.svc.SaveClass(c.Request.Context(), school.ClassGroup{
		Name:        req.Name,
		Description: req.Description,
		Subjects:    req.Subjects,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, class)
}

func (h *Handler) UpdateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	existing, err := h.svc.Class(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOr500(c, err, "class not found")
		return
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.Subjects = req.Subjects
	class, err := h.svc.SaveClass(c.Request.Context(), existing)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, class)
}

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.svc.ListClasses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if classes == nil {
		classes = []school.ClassGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) DeleteClass(c *gin.Context) {
	if err := h.svc.DeleteClass(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Announcements (admin) ----------

type announcementRequest struct {
	Title    string   `json:"title" binding:"required"`
	Content  string   `json:"content"`
	ClassIDs []string `json:"class_ids"`
}

func (h *Handler) CreateAnnouncement(c *gin.Context) {
	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ann, err := h.svc.CreateAnnouncement(c.Request.Context(), req.Title, req.Content, req.ClassIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ann)
}

func (h *Handler) ListAnnouncements(c *gin.Context) {
	anns, err := h.svc.ListAnnouncements(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if anns == nil {
		anns = []school.Announcement{}
	}
	c.JSON(http.StatusOK, gin.H{"announcements": anns})
}

func (h *Handler) DeleteAnnouncement(c *gin.Context) {
	if err := h.svc.DeleteAnnouncement(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Fees and results (admin) ----------

type feeRequest struct {
	ID         string      `json:"id"`
	StudentID  string      `json:"student_id" binding:"required"`
	Term       school.Term `json:"term" binding:"required"`
	Session    string      `json:"session" binding:"required"`
	Amount     float64     `json:"amount"`
	AmountPaid float64     `json:"amount_paid"`
	DueDate    time.Time   `json:"due_date"`
	PaidDate   *time.Time  `json:"paid_date"`
}

func (h *Handler) UpsertFee(c *gin.Context) {
	var req feeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fee, err := h.svc.UpsertFee(c.Request.Context(), school.FeeRecord{
		ID:         req.ID,
		StudentID:  req.StudentID,
		Term:       req.Term,
		Session:    req.Session,
		Amount:     req.Amount,
		AmountPaid: req.AmountPaid,
		DueDate:    req.DueDate,
		PaidDate:   req.PaidDate,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.publishReconcile(c, fee.StudentID)
	c.JSON(http.StatusOK, fee)
}

func (h *Handler) ListFees(c *gin.Context) {
	fees, err := h.svc.ListFees(c.Request.Context(), c.Query("after"), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if fees == nil {
		fees = []school.FeeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

func (h *Handler) RemoveFee(c *gin.Context) {
	studentID := c.Param("id")
	if err := h.svc.RemoveFee(c.Request.Context(), studentID, c.Param("feeId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.publishReconcile(c, studentID)
	c.Status(http.StatusNoContent)
}

type resultRequest struct {
	ID        string      `json:"id"`
	StudentID string      `json:"student_id" binding:"required"`
	Term      school.Term `json:"term" binding:"required"`
	Year      string      `json:"year" binding:"required"`
	ClassName string      `json:"class_name"`
	Grade     string      `json:"grade" binding:"required"`
	Comments  string      `json:"comments"`
	Position  int         `json:"position"`
}

func (h *Handler) UpsertResult(c *gin.Context) {
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.UpsertResult(c.Request.Context(), school.AcademicResult{
		ID:        req.ID,
		StudentID: req.StudentID,
		Term:      req.Term,
		Year:      req.Year,
		ClassName: req.ClassName,
		Grade:     req.Grade,
		Comments:  req.Comments,
		Position:  req.Position,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.publishReconcile(c, res.StudentID)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListResults(c *gin.Context) {
	results, err := h.svc.ListResults(c.Request.Context(), c.Query("after"), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []school.AcademicResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) RemoveResult(c *gin.Context) {
	studentID := c.Param("id")
	if err := h.svc.RemoveResult(c.Request.Context(), studentID, c.Param("resultId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.publishReconcile(c, studentID)
	c.Status(http.StatusNoContent)
}

// ---------- Site content (admin) ----------

func (h *Handler) GetSiteContent(c *gin.Context) {
	content, err := h.svc.SiteContent(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *Handler) UpdateSiteContent(c *gin.Context) {
	var content school.SiteContent
	if err := c.ShouldBindJSON(&content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateSiteContent(c.Request.Context(), content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, content)
}

// Upload accepts a multipart file or a base64 data URL and stores it with
// Cloudinary, returning the public URL for use in site content.
func (h *Handler) Upload(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	var result *cloudinary.UploadResult
	var err error
	switch {
	case strings.Contains(c.ContentType(), "multipart/form-data"):
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err = h.cloud.UploadBytes(data, header.Filename)

	default:
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		result, err = h.cloud.UploadBase64(body.Data)
	}

	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.SecureURL, "public_id": result.PublicID})
}

// ---------- Student self-service ----------

func (h *Handler) MyProfile(c *gin.Context) {
	claims, _ := identity.ClaimsFrom(c)
	profile, err := h.svc.Student(c.Request.Context(), claims.UID())
	if err != nil {
		notFoundOr500(c, err, "profile not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) MyFees(c *gin.Context) {
	claims, _ := identity.ClaimsFrom(c)
	fees, err := h.svc.FeesForStudent(c.Request.Context(), claims.UID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if fees == nil {
		fees = []school.FeeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

func (h *Handler) MyResults(c *gin.Context) {
	claims, _ := identity.ClaimsFrom(c)
	results, err := h.svc.ResultsForStudent(c.Request.Context(), claims.UID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []school.AcademicResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) MyAnnouncements(c *gin.Context) {
	claims, _ := identity.ClaimsFrom(c)
	profile, err := h.svc.Student(c.Request.Context(), claims.UID())
	if err != nil {
		notFoundOr500(c, err, "profile not found")
		return
	}
	anns, err := h.svc.AnnouncementsForClass(c.Request.Context(), profile.ClassID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if anns == nil {
		anns = []school.Announcement{}
	}
	c.JSON(http.StatusOK, gin.H{"announcements": anns})
}

// ---------- helpers ----------

func (h *Handler) publishReconcile(c *gin.Context, studentID string) {
	if h.queue == nil {
		return
	}
	msg := queue.Message{Kind: queue.KindReconcileStudent, StudentID: studentID}
	if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func notFoundOr500(c *gin.Context, err error, msg string) {
	if errors.Is(err, docstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
