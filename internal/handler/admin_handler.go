package handler

import (
	"net/http"

	"Uni_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	reconciler *service.Reconciler
}

func NewAdminHandler(reconciler *service.Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile 手动触发一次全量计数对账
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Sweep(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if report.Skipped {
		ok(c, http.StatusAccepted, "Another reconciliation is already running.", gin.H{"skipped": true})
		return
	}
	counters := gin.H{}
	for name, d := range report.Counters {
		counters[string(name)] = gin.H{"checked": d.Checked, "corrected": d.Corrected}
	}
	ok(c, http.StatusOK, "Reconciliation finished.", gin.H{
		"corrected": report.Corrected(),
		"failed":    report.Failed,
		"counters":  counters,
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
