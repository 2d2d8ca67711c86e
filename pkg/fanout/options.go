package fanout

type options struct {
	maxBuffered int
}

type Option func(*options)

// MaxBuffered caps each subscriber queue; 0 means unbounded.
func MaxBuffered(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBuffered = n
		}
	}
}
