package dayoff

import (
	"fmt"

	"github.com/warp/compday/generic"
)

// ApproversFor resolves the approval chain from an employee and their
// section. Stores call it after loading both rows; section may be nil.
func ApproversFor(user *User, section *Section) (Approvers, error) {
	if section == nil || user.SectionID == "" {
		return Approvers{}, fmt.Errorf("%w: %s has no section", generic.ErrApproverNotConfigured, user.ID)
	}
	if section.SupervisorID == "" {
		return Approvers{}, fmt.Errorf("%w: section %s has no team leader", generic.ErrApproverNotConfigured, section.ID)
	}
	if section.ManagerID == "" {
		return Approvers{}, fmt.Errorf("%w: section %s has no manager", generic.ErrApproverNotConfigured, section.ID)
	}

	departmentID := section.DepartmentID
	if departmentID == "" {
		departmentID = user.DepartmentID
	}
	return Approvers{
		SectionID:    section.ID,
		DepartmentID: departmentID,
		TeamLeaderID: section.SupervisorID,
		ManagerID:    section.ManagerID,
	}, nil
}
