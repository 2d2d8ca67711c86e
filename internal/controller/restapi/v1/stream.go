package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// @Summary 	Payment events stream
// @Description Server-sent events: "event: <type>" and "data: <json>", heartbeat comments in between
// @Tags 		streams
// @Produce 	text/event-stream
// @Success 	200 {object} entity.StreamEvent
// @Router 		/streams/payments [get]
func (r *V1) streamPayments(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// подписка живет дольше хендлера, отменяется по обрыву соединения
	subCtx, cancel := context.WithCancel(context.Background())
	events := r.payments.StreamEvents(subCtx)

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		heartbeat := time.NewTicker(r.heartbeat)
		defer heartbeat.Stop()

		if !writeFlush(w, ": connected\n\n") {
			return
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}

				data, err := json.Marshal(event)
				if err != nil {
					r.logger.Error(err, "restapi - v1 - streamPayments - json.Marshal")

					continue
				}

				if !writeFlush(w, fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)) {
					return
				}
			case <-heartbeat.C:
				if !writeFlush(w, ": heartbeat\n\n") {
					return
				}
			}
		}
	}))

	return nil
}

// writeFlush reports false once the client is gone.
func writeFlush(w *bufio.Writer, chunk string) bool {
	if _, err := w.WriteString(chunk); err != nil {
		return false
	}

	return w.Flush() == nil
}
