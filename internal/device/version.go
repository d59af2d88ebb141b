package device

import (
	"github.com/Masterminds/semver/v3"
)

// MatchVersion returns the devices whose firmware version satisfies constraint,
// e.g. "< 1.6.0". Devices reporting no version or an invalid one never match.
func MatchVersion(devices []Device, constraint string) ([]Device, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, ErrInvalidParams.MsgErr("invalid version constraint "+constraint, err)
	}
	matched := make([]Device, 0, len(devices))
	for _, d := range devices {
		v, err := semver.NewVersion(d.AppVersion)
		if err != nil {
			continue
		}
		if c.Check(v) {
			matched = append(matched, d)
		}
	}
	return matched, nil
}
