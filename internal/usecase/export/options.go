package export

import "time"

type Option func(*ExportUseCase)

func WithClock(now func() time.Time) Option {
	return func(uc *ExportUseCase) {
		uc.now = now
	}
}
