// SPDX-License-Identifier: MIT
package validate

// LogLevels are the level names a configuration may select, quietest last.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// LogLevel validates that value names one of LogLevels.
func (v *Validator) LogLevel(field, value string) {
	v.OneOf(field, value, LogLevels)
}
