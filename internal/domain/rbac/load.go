package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk override format. Only thresholds can be tuned;
// the permission and risk tables are compiled in.
type PolicyFile struct {
	DualApprovalAmount *float64                      `yaml:"dual_approval_amount,omitempty"`
	Thresholds         map[string]map[string]float64 `yaml:"thresholds,omitempty"`
}

// LoadPolicy builds a Policy from the defaults plus the overrides in path.
// An empty path returns DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy applies YAML overrides to the compiled-in tables
func ParsePolicy(data []byte) (*Policy, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	thresholds := make(map[Role]map[ThresholdKind]float64, len(roleThresholds))
	for role, limits := range roleThresholds {
		copied := make(map[ThresholdKind]float64, len(limits))
		for kind, v := range limits {
			copied[kind] = v
		}
		thresholds[role] = copied
	}

	for rawRole, limits := range file.Thresholds {
		role := Role(rawRole)
		if !IsAdminRole(role) {
			return nil, fmt.Errorf("policy file: %q is not an admin role", rawRole)
		}
		if thresholds[role] == nil {
			thresholds[role] = make(map[ThresholdKind]float64, len(limits))
		}
		for rawKind, v := range limits {
			kind := ThresholdKind(rawKind)
			if !kind.Valid() {
				return nil, fmt.Errorf("policy file: unknown threshold kind %q", rawKind)
			}
			if v < 0 {
				return nil, fmt.Errorf("policy file: negative threshold for %s/%s", rawRole, rawKind)
			}
			thresholds[role][kind] = v
		}
	}

	dual := float64(DefaultDualApprovalAmount)
	if file.DualApprovalAmount != nil {
		if *file.DualApprovalAmount <= 0 {
			return nil, fmt.Errorf("policy file: dual_approval_amount must be positive")
		}
		dual = *file.DualApprovalAmount
	}

	return newPolicy(thresholds, dual), nil
}
