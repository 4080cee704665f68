package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidID         ErrCode = "INVALID_ID"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrUnsupportedFormat ErrCode = "UNSUPPORTED_FORMAT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrTemplateNotFound        ErrCode = "TEMPLATE_NOT_FOUND"
	ErrQuestionNotFound        ErrCode = "QUESTION_NOT_FOUND"
	ErrDuplicateActiveAttempt  ErrCode = "DUPLICATE_ACTIVE_ATTEMPT"
	ErrAttemptAlreadyFinalized ErrCode = "ATTEMPT_ALREADY_FINALIZED"
	ErrAttemptExpired          ErrCode = "ATTEMPT_EXPIRED"
	ErrAttemptInProgress       ErrCode = "ATTEMPT_IN_PROGRESS"
	ErrUnknownInstance         ErrCode = "UNKNOWN_INSTANCE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrUnsupportedFormat:
		return "Format ekspor tidak didukung. Gunakan csv, pdf, atau xlsx."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrTemplateNotFound:
		return "Tes tidak ditemukan atau tidak aktif."
	case ErrQuestionNotFound:
		return "Tes merujuk ke soal yang tidak ada."
	case ErrDuplicateActiveAttempt:
		return "Anda masih memiliki percobaan yang sedang berlangsung untuk tes ini."
	case ErrAttemptAlreadyFinalized:
		return "Percobaan ini sudah dikumpulkan."
	case ErrAttemptExpired:
		return "Waktu pengerjaan telah habis."
	case ErrAttemptInProgress:
		return "Pembahasan tersedia setelah percobaan selesai."
	case ErrUnknownInstance:
		return "Soal tidak termasuk dalam percobaan ini."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
