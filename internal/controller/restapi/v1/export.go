package v1

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// @Summary 	Request payments export
// @Description Creates an export job and queues it. The file link appears in the job status
// @Tags 		exports
// @Produce 	json
// @Param 		format   query string false "csv or xlsx(default csv)"
// @Param 		dealId   query string false "Deal ID(uuid)"
// @Param 		policyId query string false "Policy ID(uuid)"
// @Param 		statuses query []string false "Status filter"
// @Param 		types    query []string false "Payment type filter"
// @Param 		fromDate query string false "Created from(RFC 3339)"
// @Param 		toDate   query string false "Created to(RFC 3339)"
// @Param 		limit    query int false "Max rows(1..200)"
// @Param 		offset   query int false "Offset"
// @Success 	202 {object} dto.ExportResponse
// @Failure 	400 {object} response.Error "validation_error"
// @Failure 	500 {object} response.Error "internal_error"
// @Router 		/payments/export [get]
func (r *V1) requestExport(ctx *fiber.Ctx) error {
	req, err := exportQuery(ctx)
	if err != nil {
		return r.errorResponse(ctx, err, "requestExport")
	}

	job, err := r.exports.RequestExport(ctx.UserContext(), req)
	if err != nil {
		return r.errorResponse(ctx, err, "requestExport")
	}

	return ctx.Status(http.StatusAccepted).JSON(job)
}

// @Summary 	Export job status
// @Tags 		exports
// @Produce 	json
// @Param 		jobId path string true "Job ID(uuid)"
// @Success 	200 {object} dto.ExportResponse
// @Failure 	404 {object} response.Error "export_not_found"
// @Router 		/payments/export/{jobId} [get]
func (r *V1) getExportStatus(ctx *fiber.Ctx) error {
	jobID, err := pathID(ctx, "jobId")
	if err != nil {
		return r.errorResponse(ctx, err, "getExportStatus")
	}

	job, err := r.exports.GetStatus(ctx.UserContext(), jobID)
	if err != nil {
		return r.errorResponse(ctx, err, "getExportStatus")
	}

	return ctx.Status(http.StatusOK).JSON(job)
}
