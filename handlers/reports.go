package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"waterlog/geo"
	"waterlog/imaging"
	"waterlog/middleware"
	"waterlog/models"
	"waterlog/submission"
)

const maxUploadBytes = 10 << 20

// saveUpload stores the optional multipart file under field. It returns nil
// when the request carries no such file.
func (h *Handlers) saveUpload(c *gin.Context, field string) (*models.StoredFile, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s upload: %w", field, err)
	}
	if fh.Size > maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, maxUploadBytes)
	}
	data, err := readMultipart(fh)
	if err != nil {
		return nil, err
	}

	ext, contentType, err := imaging.Detect(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s upload: %w", field, err)
	}
	if h.MaxImageDimension > 0 {
		normalized, reencoded, err := imaging.Normalize(data, h.MaxImageDimension)
		if err != nil {
			log.Warnf("Storing %s without normalizing: %v", fh.Filename, err)
		} else if reencoded {
			data, ext, contentType = normalized, ".jpg", "image/jpeg"
		}
	}
	return h.Uploads.Save(c.Request.Context(), field+ext, data, contentType)
}

func readMultipart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// parseSubmission validates the multipart form fields of a new report.
func parseSubmission(c *gin.Context) (models.Submission, error) {
	var sub models.Submission
	sub.Title = strings.TrimSpace(c.PostForm("title"))
	sub.Description = strings.TrimSpace(c.PostForm("description"))
	if sub.Title == "" || sub.Description == "" {
		return sub, errors.New("title and description are required")
	}
	severity, err := models.ParseSeverity(c.PostForm("severity"))
	if err != nil {
		return sub, err
	}
	sub.Severity = severity

	if sub.Lat, err = strconv.ParseFloat(c.PostForm("lat"), 64); err != nil || sub.Lat < -90 || sub.Lat > 90 {
		return sub, errors.New("lat must be a number between -90 and 90")
	}
	if sub.Lng, err = strconv.ParseFloat(c.PostForm("lng"), 64); err != nil || sub.Lng < -180 || sub.Lng > 180 {
		return sub, errors.New("lng must be a number between -180 and 180")
	}
	if sub.AssignedAuthorityID, err = strconv.ParseInt(c.PostForm("assigned_authority_id"), 10, 64); err != nil || sub.AssignedAuthorityID <= 0 {
		return sub, errors.New("assigned_authority_id is required")
	}
	return sub, nil
}

// CreateReport runs a citizen's report through moderation and the duplicate
// check and stores it.
func (h *Handlers) CreateReport(c *gin.Context) {
	sub, err := parseSubmission(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub.ReporterID = middleware.CurrentUser(c).ID

	if sub.Image, err = h.saveUpload(c, "image"); err != nil {
		log.Warnf("Upload failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image upload"})
		return
	}

	report, err := h.Pipeline.Submit(c.Request.Context(), sub)
	var (
		rejected  *submission.RejectionError
		duplicate *submission.DuplicateError
	)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, report)
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Report Rejected by AI Moderator",
			"reason":  rejected.Reason,
			"is_spam": true,
		})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{
			"error":              "Duplicate Warning",
			"message":            "An unresolved report within about 20 meters of this location was filed in the last 12 hours. Please upvote the existing report instead.",
			"existing_report_id": duplicate.ExistingReportID,
		})
	default:
		log.Errorf("Failed to submit report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}

func (h *Handlers) ListReports(c *gin.Context) {
	var f models.ReportFilter
	if v := c.Query("authority_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid authority_id"})
			return
		}
		f.AuthorityID = id
	}
	if v := c.Query("status"); v != "" {
		f.Status = models.Status(v)
	}
	reports, err := h.Store.ListReports(c.Request.Context(), f)
	if err != nil {
		storeError(c, err, "Failed to list reports")
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	report, err := h.Store.GetReport(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Failed to get report")
		return
	}
	c.JSON(http.StatusOK, report)
}

type statusRequest struct {
	Status models.Status `json:"status" binding:"required"`
}

// UpdateStatus moves a report forward, e.g. Open to In Progress.
func (h *Handlers) UpdateStatus(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	report, err := h.Store.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		storeError(c, err, "Failed to update report status")
		return
	}
	h.notify(models.EventReportUpdated, report)
	c.JSON(http.StatusOK, report)
}

// ResolveReport closes a report with a note and an optional proof photo.
func (h *Handlers) ResolveReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	proof, err := h.saveUpload(c, "proof_image")
	if err != nil {
		log.Warnf("Proof upload failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proof image upload"})
		return
	}
	report, err := h.Store.ResolveReport(c.Request.Context(), id, models.Resolution{
		Note:       c.PostForm("note"),
		ProofImage: proof,
	})
	if err != nil {
		if proof != nil {
			if derr := h.Uploads.Delete(c.Request.Context(), proof.Key); derr != nil {
				log.Errorf("Failed to delete unused proof image %s: %v", proof.Key, derr)
			}
		}
		storeError(c, err, "Failed to resolve report")
		return
	}
	h.notify(models.EventReportResolved, report)
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) Upvote(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.Store.Upvote(c.Request.Context(), id, middleware.CurrentUser(c).ID); err != nil {
		storeError(c, err, "Failed to upvote")
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handlers) CountUpvotes(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	n, err := h.Store.CountUpvotes(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Failed to count upvotes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handlers) AddComment(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	comment, err := h.Store.AddComment(c.Request.Context(), id, middleware.CurrentUser(c).ID, strings.TrimSpace(req.Text))
	if err != nil {
		storeError(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handlers) ListComments(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	comments, err := h.Store.ListComments(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Failed to list comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// ReportsMap returns the reports in a viewport, clustered when crowded.
func (h *Handlers) ReportsMap(c *gin.Context) {
	var vp models.ViewPort
	if err := c.ShouldBindQuery(&vp); err != nil || vp.LatMin >= vp.LatMax || vp.LngMin >= vp.LngMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latmin < latmax and lngmin < lngmax are required"})
		return
	}
	points, err := h.Store.ReportsInViewport(c.Request.Context(), vp)
	if err != nil {
		storeError(c, err, "Failed to load map")
		return
	}
	clusterer := geo.NewClusterer(vp)
	for _, p := range points {
		clusterer.AddPoint(p)
	}
	c.JSON(http.StatusOK, clusterer.Points())
}
