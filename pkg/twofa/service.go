package twofa

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-twofa/pkg/notification"
)

// TwoFactorService is the public surface of the 2FA engine
type TwoFactorService interface {
	BeginSetup(ctx context.Context, accountID uuid.UUID, accountLabel string) (SetupResult, error)
	VerifySetup(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error)
	PendingSetup(ctx context.Context, accountID uuid.UUID) (QRPayload, error)
	Verify(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error)
	Disable(ctx context.Context, accountID uuid.UUID, confirmationToken string) error
	IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error)
	IsLocked(ctx context.Context, accountID uuid.UUID) (bool, error)
	UnlockTime(ctx context.Context, accountID uuid.UUID) (*time.Time, error)
	GetBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error)
	RegenerateBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error)
	Status(ctx context.Context, accountID uuid.UUID) (Status, error)
}

// TwoFaService is the verification gate. It composes the code generator,
// backup code store, lockout controller and enrollment manager, and
// serializes all operations on the same account.
type TwoFaService struct {
	repo        TwoFARepository
	generator   *CodeGenerator
	lockout     *LockoutController
	backupCodes *BackupCodeStore
	enrollment  *EnrollmentManager
	locks       *accountLocks

	issuer              string
	maxAttempts         int
	lockoutDuration     time.Duration
	setupTTL            time.Duration
	deriver             Deriver
	rand                io.Reader
	now                 func() time.Time
	settings            SettingsSync
	notificationManager *notification.NotificationManager
}

// NewTwoFaService creates a new 2FA service on top of repo
func NewTwoFaService(repo TwoFARepository, opts ...Option) *TwoFaService {
	s := &TwoFaService{
		repo:            repo,
		issuer:          DefaultIssuer,
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
		deriver:         TOTPDeriver{},
		now:             time.Now,
		locks:           newAccountLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.generator = NewCodeGenerator(s.rand, s.deriver)
	s.lockout = NewLockoutController(repo, s.maxAttempts, s.lockoutDuration, s.now)
	s.maxAttempts = s.lockout.MaxAttempts()
	s.backupCodes = NewBackupCodeStore(repo, s.generator)
	s.enrollment = &EnrollmentManager{
		repo:      repo,
		generator: s.generator,
		lockout:   s.lockout,
		issuer:    s.issuer,
		setupTTL:  s.setupTTL,
		now:       s.now,
		settings:  s.settings,
		notify:    s.sendNotice,
	}
	return s
}

// Generator exposes the code generator, e.g. to compute a current code
func (s *TwoFaService) Generator() *CodeGenerator {
	return s.generator
}

func (s *TwoFaService) BeginSetup(ctx context.Context, accountID uuid.UUID, accountLabel string) (SetupResult, error) {
	defer s.locks.lock(accountID)()
	return s.enrollment.BeginSetup(ctx, accountID, accountLabel)
}

func (s *TwoFaService) VerifySetup(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error) {
	defer s.locks.lock(accountID)()
	return s.enrollment.VerifySetup(ctx, accountID, code)
}

func (s *TwoFaService) PendingSetup(ctx context.Context, accountID uuid.UUID) (QRPayload, error) {
	defer s.locks.lock(accountID)()
	return s.enrollment.PendingSetup(ctx, accountID)
}

// Verify checks a code at login time. Backup codes are tried before the
// time-based code. Every failure counts towards the lockout.
func (s *TwoFaService) Verify(ctx context.Context, accountID uuid.UUID, code string) (VerificationResult, error) {
	defer s.locks.lock(accountID)()

	record, err := s.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return VerificationResult{Message: "Failed to verify 2FA code"}, err
	}
	if record == nil || !record.Enabled {
		return VerificationResult{Message: "2FA not enabled"}, ErrNotEnabled
	}

	state, locked, err := s.lockout.check(ctx, accountID)
	if err != nil {
		return VerificationResult{Message: "Failed to verify 2FA code"}, err
	}
	if locked {
		return lockedResult(*state.LockedUntil), lockedError(*state.LockedUntil)
	}

	code = normalizeCode(code)
	now := s.now()

	method := Method("")
	if s.backupCodes.Take(record, code) {
		method = MethodBackupCode
	} else {
		ok, err := s.generator.Matches(record.Secret, code, now)
		if err != nil {
			return VerificationResult{Message: "Failed to verify 2FA code"}, err
		}
		if ok {
			method = MethodTOTP
		}
	}

	if method == "" {
		return s.recordFailure(ctx, accountID)
	}

	// The lockout reset goes first so a failed write leaves a backup code unspent.
	if state.FailedAttempts > 0 {
		if err := s.lockout.RecordSuccess(ctx, accountID); err != nil {
			return VerificationResult{Message: "Failed to verify 2FA code"}, err
		}
	}
	usedAt := now.UTC()
	record.LastUsedAt = &usedAt
	if err := s.repo.SaveEnabledRecord(ctx, accountID, *record); err != nil {
		return VerificationResult{Message: "Failed to verify 2FA code"}, err
	}

	if method == MethodBackupCode {
		slog.Info("Backup code used", "account_id", accountID, "remaining", len(record.BackupCodes))
		return VerificationResult{Success: true, Message: "Backup code verified successfully", Method: MethodBackupCode}, nil
	}
	return VerificationResult{Success: true, Message: "2FA code verified successfully", Method: MethodTOTP}, nil
}

func (s *TwoFaService) recordFailure(ctx context.Context, accountID uuid.UUID) (VerificationResult, error) {
	outcome, err := s.lockout.RecordFailure(ctx, accountID)
	if err != nil {
		return VerificationResult{Message: "Failed to verify 2FA code"}, err
	}
	if outcome.Locked {
		slog.Warn("Account locked after failed 2FA attempts", "account_id", accountID, "locked_until", *outcome.LockedUntil)
		return lockedResult(*outcome.LockedUntil), lockedError(*outcome.LockedUntil)
	}

	slog.Info("Invalid 2FA code", "account_id", accountID, "remaining_attempts", outcome.RemainingAttempts)
	remaining := outcome.RemainingAttempts
	return VerificationResult{
		Message:           "Invalid 2FA code",
		RemainingAttempts: &remaining,
	}, invalidCodeError(remaining)
}

func lockedResult(until time.Time) VerificationResult {
	remaining := 0
	return VerificationResult{
		Message:           "Too many failed attempts. Account locked until " + until.UTC().Format(time.RFC3339) + ".",
		RemainingAttempts: &remaining,
		LockedUntil:       &until,
	}
}

func (s *TwoFaService) Disable(ctx context.Context, accountID uuid.UUID, confirmationToken string) error {
	defer s.locks.lock(accountID)()
	return s.enrollment.Disable(ctx, accountID, confirmationToken)
}

func (s *TwoFaService) IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error) {
	defer s.locks.lock(accountID)()
	record, err := s.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return false, err
	}
	return record != nil && record.Enabled, nil
}

func (s *TwoFaService) IsLocked(ctx context.Context, accountID uuid.UUID) (bool, error) {
	defer s.locks.lock(accountID)()
	return s.lockout.CheckLocked(ctx, accountID)
}

func (s *TwoFaService) UnlockTime(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	defer s.locks.lock(accountID)()
	return s.lockout.UnlockTime(ctx, accountID)
}

func (s *TwoFaService) GetBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	defer s.locks.lock(accountID)()
	return s.backupCodes.List(ctx, accountID)
}

func (s *TwoFaService) RegenerateBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	defer s.locks.lock(accountID)()
	codes, err := s.backupCodes.Regenerate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetEnabledRecord(ctx, accountID)
	if err == nil && record != nil {
		s.sendNotice(ctx, notification.BackupCodesRegenerated, accountID, record.AccountLabel)
	}
	slog.Info("Backup codes regenerated", "account_id", accountID)
	return codes, nil
}

// Status summarizes the account's 2FA state. An expired lock is cleared.
func (s *TwoFaService) Status(ctx context.Context, accountID uuid.UUID) (Status, error) {
	defer s.locks.lock(accountID)()

	status := Status{MaxAttempts: s.maxAttempts}

	record, err := s.repo.GetEnabledRecord(ctx, accountID)
	if err != nil {
		return Status{}, err
	}
	if record != nil && record.Enabled {
		enabledAt := record.EnabledAt
		status.Enabled = true
		status.AccountLabel = record.AccountLabel
		status.EnabledAt = &enabledAt
		status.LastUsedAt = record.LastUsedAt
		status.BackupCodesRemaining = len(record.BackupCodes)
	}

	pending, err := s.enrollment.pendingEnrollment(ctx, accountID)
	if err != nil {
		return Status{}, err
	}
	status.SetupPending = pending != nil

	state, locked, err := s.lockout.check(ctx, accountID)
	if err != nil {
		return Status{}, err
	}
	status.Locked = locked
	status.FailedAttempts = state.FailedAttempts
	if locked {
		status.LockedUntil = state.LockedUntil
	}
	return status, nil
}

// sendNotice delivers a security notice. Delivery failures are logged only.
func (s *TwoFaService) sendNotice(ctx context.Context, noticeType notification.NoticeType, accountID uuid.UUID, accountLabel string) {
	if s.notificationManager == nil {
		return
	}
	data := notification.NotificationData{
		Data: map[string]string{
			"AccountID":    accountID.String(),
			"AccountLabel": accountLabel,
			"OccurredAt":   s.now().UTC().Format(time.RFC3339),
		},
	}
	if strings.Contains(accountLabel, "@") {
		data.To = accountLabel
	}
	if err := s.notificationManager.Send(noticeType, data); err != nil {
		slog.Error("Failed to send security notice", "type", noticeType, "account_id", accountID, "err", err)
	}
}

// accountLocks hands out one mutex per account. Entries are reference
// counted and removed when no operation holds them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uuid.UUID]*accountLock)}
}

// lock acquires the account's mutex and returns its release function
func (l *accountLocks) lock(accountID uuid.UUID) func() {
	l.mu.Lock()
	al, ok := l.locks[accountID]
	if !ok {
		al = &accountLock{}
		l.locks[accountID] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, accountID)
		}
		l.mu.Unlock()
	}
}
