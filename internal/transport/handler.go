package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-endoqa/internal/config"
	apperrors "go-endoqa/internal/errors"
	"go-endoqa/internal/logger"
	"go-endoqa/internal/observer"
	"go-endoqa/internal/repository"
	"go-endoqa/internal/service"
	"go-endoqa/pkg/models"
)

// uploadField is the multipart field carrying frame files, in frame order
const uploadField = "frames"

// StatsProvider exposes the inspection counters served on /stats
type StatsProvider interface {
	GetStats() observer.Stats
}

// NewHandler builds the HTTP API. stats may be nil.
func NewHandler(svc service.InspectionService, stats StatsProvider, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.POST("/inspect", inspect(svc, cfg))
	r.POST("/inspect/upload", inspectUpload(svc, cfg))
	r.GET("/reports", listReports(svc))
	r.GET("/reports/:id", getReport(svc))
	r.GET("/stats", serveStats(stats, svc))

	return r
}

func inspect(svc service.InspectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing inspection request")

		var req models.InspectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithField("ip", c.ClientIP()).Error("Invalid request format")
			respondError(c, bodyErrorStatus(err), "invalid request format", err)
			return
		}

		report, err := svc.Inspect(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "inspection failed", err)
			return
		}

		logCompleted(report, time.Since(startTime))
		c.JSON(http.StatusOK, report)
	}
}

func inspectUpload(svc service.InspectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, bodyErrorStatus(err), "invalid multipart form", err)
			return
		}

		files := form.File[uploadField]
		if len(files) == 0 {
			respondError(c, http.StatusBadRequest, "invalid multipart form",
				apperrors.NewValidationError(fmt.Sprintf("no %q files in form", uploadField), nil))
			return
		}

		var overrides *models.ThresholdOverrides
		if raw := strings.TrimSpace(c.PostForm("thresholds")); raw != "" {
			overrides = &models.ThresholdOverrides{}
			if err := json.Unmarshal([]byte(raw), overrides); err != nil {
				respondError(c, http.StatusBadRequest, "invalid thresholds field",
					apperrors.NewValidationError("thresholds must be a JSON object", err))
				return
			}
		}

		uploads := make([]service.Upload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "failed to read upload", err)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				respondError(c, bodyErrorStatus(err), "failed to read upload", err)
				return
			}
			uploads = append(uploads, service.Upload{Name: fh.Filename, Data: data})
		}

		report, err := svc.InspectUploads(ctx, uploads, overrides)
		if err != nil {
			respondError(c, determineStatusCode(err), "inspection failed", err)
			return
		}

		logCompleted(report, time.Since(startTime))
		c.JSON(http.StatusOK, report)
	}
}

func listReports(svc service.InspectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := repository.ListFilter{
			Overall: strings.ToUpper(strings.TrimSpace(c.Query("overall"))),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				respondError(c, http.StatusBadRequest, "invalid limit",
					apperrors.NewValidationError("limit must be a non-negative integer", err))
				return
			}
			filter.Limit = limit
		}

		reports, err := svc.ListReports(c.Request.Context(), filter)
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to list reports", err)
			return
		}

		resp := models.ReportListResponse{
			Reports: make([]models.Report, 0, len(reports)),
			Count:   len(reports),
		}
		for _, r := range reports {
			resp.Reports = append(resp.Reports, *r)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func getReport(svc service.InspectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to get report", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func serveStats(stats StatsProvider, svc service.InspectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"thresholds": svc.Thresholds()}
		if stats != nil {
			body["inspections"] = stats.GetStats()
		}
		c.JSON(http.StatusOK, body)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func logCompleted(report *models.Report, duration time.Duration) {
	logger.ForInspection(report.ID).WithFields(logrus.Fields{
		"overall":            report.Overall(),
		"frame_count":        report.FrameCount,
		"processing_time_ms": duration.Milliseconds(),
	}).Info("Inspection request completed successfully")
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

// bodyErrorStatus maps request body read failures: oversized bodies are 413,
// everything else is the client's fault
func bodyErrorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func determineStatusCode(err error) int {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
