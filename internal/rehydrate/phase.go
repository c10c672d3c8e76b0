// Package rehydrate replaces the contents of a live Postgres database with
// data from a dated backup archive, reshaped to the current schema. The
// backup is replayed into a staging database, its data extracted as plain
// INSERT statements, and applied to a freshly provisioned and migrated
// target.
package rehydrate

// Phase identifies a step of a rehydration run
type Phase string

const (
	PhaseDraining            Phase = "Draining"
	PhaseProvisioningTarget  Phase = "ProvisioningTarget"
	PhaseMigratingSchema     Phase = "MigratingSchema"
	PhaseProvisioningStaging Phase = "ProvisioningStaging"
	PhaseLoadingBackup       Phase = "LoadingBackup"
	PhaseExtracting          Phase = "Extracting"
	PhaseApplying            Phase = "Applying"
	PhaseVerifying           Phase = "Verifying"
	PhaseCleaningUp          Phase = "CleaningUp"
	PhaseDone                Phase = "Done"
	PhaseFailed              Phase = "Failed"
)

// Phases returns the executable phases of a run in order. Done and Failed
// are terminal states, not steps.
func Phases() []Phase {
	return []Phase{
		PhaseDraining,
		PhaseProvisioningTarget,
		PhaseMigratingSchema,
		PhaseProvisioningStaging,
		PhaseLoadingBackup,
		PhaseExtracting,
		PhaseApplying,
		PhaseVerifying,
		PhaseCleaningUp,
	}
}
