package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"

	// Sync pipeline.
	JobNotFound        failure.ErrorCode = "JobNotFound"
	JobAlreadyRunning  failure.ErrorCode = "JobAlreadyRunning"
	RecordNotFound     failure.ErrorCode = "RecordNotFound"
	RecordConflict     failure.ErrorCode = "RecordConflict"
	InvalidSupplierID  failure.ErrorCode = "InvalidSupplierID"
	EmptyIDList        failure.ErrorCode = "EmptyIDList"
	SupplierAuthFailed failure.ErrorCode = "SupplierAuthFailed"
	ProductNotFound    failure.ErrorCode = "ProductNotFound"
	RateLimited        failure.ErrorCode = "RateLimited"

	// Marketplace.
	MarketplaceAuthFailed failure.ErrorCode = "MarketplaceAuthFailed"
	ListingNotFound       failure.ErrorCode = "ListingNotFound"
	ListingValidation     failure.ErrorCode = "ListingValidation"
	TokenMissing          failure.ErrorCode = "TokenMissing"

	// Pricing.
	RateUnavailable failure.ErrorCode = "RateUnavailable"
	PriceOutOfRange failure.ErrorCode = "PriceOutOfRange"
)
