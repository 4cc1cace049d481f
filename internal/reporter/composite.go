package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) each(fn func(Reporter)) {
	for _, r := range c.reporters {
		fn(r)
	}
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	c.each(func(r Reporter) { r.Hardware(summary) })
}

func (c *CompositeReporter) Initialization(summary InitializationSummary) {
	c.each(func(r Reporter) { r.Initialization(summary) })
}

func (c *CompositeReporter) StageProgress(update StageProgress) {
	c.each(func(r Reporter) { r.StageProgress(update) })
}

func (c *CompositeReporter) EncodingConfig(summary EncodingConfigSummary) {
	c.each(func(r Reporter) { r.EncodingConfig(summary) })
}

func (c *CompositeReporter) EncodingStarted(totalFrames uint64) {
	c.each(func(r Reporter) { r.EncodingStarted(totalFrames) })
}

func (c *CompositeReporter) EncodingProgress(progress ProgressSnapshot) {
	c.each(func(r Reporter) { r.EncodingProgress(progress) })
}

func (c *CompositeReporter) EncodingCancelled(summary CancelSummary) {
	c.each(func(r Reporter) { r.EncodingCancelled(summary) })
}

func (c *CompositeReporter) ValidationComplete(summary ValidationSummary) {
	c.each(func(r Reporter) { r.ValidationComplete(summary) })
}

func (c *CompositeReporter) EncodingComplete(summary EncodingOutcome) {
	c.each(func(r Reporter) { r.EncodingComplete(summary) })
}

func (c *CompositeReporter) Warning(message string) {
	c.each(func(r Reporter) { r.Warning(message) })
}

func (c *CompositeReporter) Error(err ReporterError) {
	c.each(func(r Reporter) { r.Error(err) })
}

func (c *CompositeReporter) OperationComplete(message string) {
	c.each(func(r Reporter) { r.OperationComplete(message) })
}

func (c *CompositeReporter) BatchStarted(info BatchStartInfo) {
	c.each(func(r Reporter) { r.BatchStarted(info) })
}

func (c *CompositeReporter) FileProgress(context FileProgressContext) {
	c.each(func(r Reporter) { r.FileProgress(context) })
}

func (c *CompositeReporter) BatchComplete(summary BatchSummary) {
	c.each(func(r Reporter) { r.BatchComplete(summary) })
}

func (c *CompositeReporter) Verbose(message string) {
	c.each(func(r Reporter) { r.Verbose(message) })
}
