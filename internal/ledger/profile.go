package ledger

import (
	"context"
	"strings"
)

// AccountDetails holds descriptive account fields. Blank fields keep their
// current value.
type AccountDetails struct {
	Name         string
	PhoneNumber  string
	Matric       string
	LicensePlate string
}

// UpdateAccountDetails changes an account's descriptive fields. Matric numbers
// belong to students and licence plates to drivers.
func (s *Service) UpdateAccountDetails(ctx context.Context, accountID string, d AccountDetails) (Account, error) {
	d = AccountDetails{
		Name:         strings.TrimSpace(d.Name),
		PhoneNumber:  strings.TrimSpace(d.PhoneNumber),
		Matric:       strings.TrimSpace(d.Matric),
		LicensePlate: strings.TrimSpace(d.LicensePlate),
	}
	if d == (AccountDetails{}) {
		return Account{}, ErrInvalidInput
	}
	var out Account
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if (d.Matric != "" && a.Role != RoleStudent) || (d.LicensePlate != "" && a.Role != RoleDriver) {
			return ErrInvalidInput
		}
		if d.Name != "" {
			a.Name = d.Name
		}
		if d.PhoneNumber != "" {
			a.PhoneNumber = d.PhoneNumber
		}
		if d.Matric != "" {
			a.Matric = d.Matric
		}
		if d.LicensePlate != "" {
			a.LicensePlate = d.LicensePlate
		}
		if err := q.UpdateAccountDetails(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return Account{}, Upstream("update account details", err)
	}
	return out, nil
}
