package led

import (
	"os"
	"strings"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

var log = logging.GetLogger("led")

// New creates an LED controller based on board detection. Falls back to a
// no-op controller when no known board is found.
func New() Controller {
	boardModel := detectBoard()
	log.Info("Detecting board for LED control", "board_model", boardModel)

	switch {
	case strings.Contains(boardModel, "ESP32-P4"):
		return newSysfs(map[string]string{
			"status": "status_led",
			"record": "record_led",
		})

	case strings.Contains(boardModel, "Raspberry Pi"):
		return newSysfs(map[string]string{
			"status": "ACT",
		})

	case strings.Contains(boardModel, "NanoPC"):
		return newSysfs(map[string]string{
			"status": "sys_led",
			"record": "usr_led",
		})

	default:
		log.Info("No LED support detected, using no-op controller", "board_model", boardModel)
		return newNoop(log)
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model strings are null terminated.
	return strings.TrimRight(string(data), "\x00")
}
