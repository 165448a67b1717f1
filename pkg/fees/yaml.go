package fees

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func parseSchedules(raw []byte) ([]Schedule, error) {
	var schedules []Schedule
	if err := yaml.Unmarshal(raw, &schedules); err != nil {
		return nil, fmt.Errorf("fees: parse schedule table: %w", err)
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("fees: schedule table is empty")
	}
	return schedules, nil
}
