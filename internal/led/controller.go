package led

// Controller abstracts LED hardware control across different camera boards.
// Implementations handle board-specific LED naming and capabilities.
type Controller interface {
	// Set controls an LED's state and optional pattern.
	//   ledType: board-specific LED identifier (e.g., "status", "record")
	//   enabled: whether the LED should be on or off
	//   pattern: optional pattern ("solid", "blink", "heartbeat");
	//            empty string means no pattern change
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types this controller supports.
	Available() []string

	// Patterns returns the patterns this controller supports.
	Patterns() []string
}
