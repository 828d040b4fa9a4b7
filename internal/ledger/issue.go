package ledger

import (
	"context"
	"strings"
	"unicode/utf8"
)

const minReportLength = 10

// ReportIssue stores a problem report from an account holder.
func (s *Service) ReportIssue(ctx context.Context, accountID, text string) (IssueReport, error) {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(accountID) == "" || text == "" {
		return IssueReport{}, ErrInvalidInput
	}
	if utf8.RuneCountInString(text) < minReportLength {
		return IssueReport{}, ErrReportTooShort
	}
	if _, err := s.Account(ctx, accountID); err != nil {
		return IssueReport{}, err
	}

	r := IssueReport{
		ID:        s.newID(),
		AccountID: accountID,
		Text:      text,
		Status:    IssueStatusNew,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.InsertIssueReport(ctx, r); err != nil {
		return IssueReport{}, Upstream("report issue", err)
	}
	return r, nil
}

// UpdateBankProfile replaces the payout details of a driver. Already submitted
// withdrawal requests keep the details they were filed with.
func (s *Service) UpdateBankProfile(ctx context.Context, accountID, bankName, accountNumber string) (BankProfile, error) {
	p := BankProfile{
		AccountID:     strings.TrimSpace(accountID),
		BankName:      strings.TrimSpace(bankName),
		AccountNumber: strings.TrimSpace(accountNumber),
		UpdatedAt:     s.clock.Now(),
	}
	if p.AccountID == "" || !p.Complete() {
		return BankProfile{}, ErrInvalidInput
	}
	err := s.store.WithTx(ctx, func(q Queries) error {
		a, err := q.GetAccount(ctx, p.AccountID)
		if err != nil {
			return err
		}
		if a.Role != RoleDriver {
			return ErrDriverNotFound
		}
		return q.UpsertBankProfile(ctx, p)
	})
	if err != nil {
		return BankProfile{}, Upstream("update bank profile", err)
	}
	return p, nil
}

func (s *Service) BankProfile(ctx context.Context, accountID string) (BankProfile, error) {
	p, err := s.store.GetBankProfile(ctx, accountID)
	if err != nil {
		return BankProfile{}, Upstream("get bank profile", err)
	}
	return p, nil
}
