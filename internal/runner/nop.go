package runner

// NopExecutor is a driver that succeeds on every call: elements exist,
// expressions evaluate true, lookups return empty strings. It backs the
// CLI's dry-run mode, which checks playbook wiring and state paths without
// a real automation driver attached.
type NopExecutor struct{}

func (NopExecutor) Click(string) error                          { return nil }
func (NopExecutor) TypeText(string, string) error               { return nil }
func (NopExecutor) Wait(string) error                           { return nil }
func (NopExecutor) Navigate(string) error                       { return nil }
func (NopExecutor) ExecuteScript(string) (string, error)        { return "", nil }
func (NopExecutor) Screenshot(string) error                     { return nil }
func (NopExecutor) ElementExists(string) (bool, error)          { return true, nil }
func (NopExecutor) GetText(string) (string, error)              { return "", nil }
func (NopExecutor) GetAttribute(string, string) (string, error) { return "", nil }
func (NopExecutor) GetURL() (string, error)                     { return "", nil }
func (NopExecutor) Evaluate(string) (bool, error)               { return true, nil }

var _ ActionExecutor = NopExecutor{}
