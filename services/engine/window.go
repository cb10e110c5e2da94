package engine

// Window is the trailing slice of already-seen bars handed to the signal
// generators, with the price arrays extracted once so every indicator call
// shares them. A window never contains the bar currently being evaluated.
type Window struct {
	Bars    []Bar
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// NewWindow extracts the price arrays from an ordered bar slice. The slice
// is not copied; callers must not mutate it while the window is live.
func NewWindow(bars []Bar) *Window {
	w := &Window{
		Bars:    bars,
		Highs:   make([]float64, len(bars)),
		Lows:    make([]float64, len(bars)),
		Closes:  make([]float64, len(bars)),
		Volumes: make([]float64, len(bars)),
	}
	for i, b := range bars {
		w.Highs[i] = b.High
		w.Lows[i] = b.Low
		w.Closes[i] = b.Close
		w.Volumes[i] = float64(b.Volume)
	}
	return w
}

func (w *Window) Len() int { return len(w.Bars) }

// Last returns the most recent bar in the window.
func (w *Window) Last() Bar { return w.Bars[len(w.Bars)-1] }
