package httpresponse

import "strconv"

// BackendErrorCode is the numeric error code carried in the "err" field of
// every JSON envelope. The client interprets these, not the HTTP status.
type BackendErrorCode int

const (
	None                        BackendErrorCode = 0
	UnknownError                BackendErrorCode = 200
	NotAuthorized               BackendErrorCode = 201
	NeedAuthorizationCode       BackendErrorCode = 209
	WrongAuthorizationCode      BackendErrorCode = 211
	NeedCaptcha                 BackendErrorCode = 214
	NoNeedCaptcha               BackendErrorCode = 215
	CaptchaInvalidMaximumLength BackendErrorCode = 216
	CaptchaFailed               BackendErrorCode = 218
	CaptchaBruteForced          BackendErrorCode = 219
	NoRoomInStash               BackendErrorCode = 223
	NicknameNotUnique           BackendErrorCode = 225
	NicknameNotValid            BackendErrorCode = 226
	UnsupportedClientVersion    BackendErrorCode = 232
	ReportNotAllowed            BackendErrorCode = 238
	NicknameIsAbusive           BackendErrorCode = 241
	NicknameChangeTimeout       BackendErrorCode = 242
	NotModified                 BackendErrorCode = 304
	HTTPBadRequest              BackendErrorCode = 400
	HTTPNotAuthorized           BackendErrorCode = 401
	HTTPForbidden               BackendErrorCode = 403
	HTTPNotFound                BackendErrorCode = 404
	HTTPMethodNotAllowed        BackendErrorCode = 405
	UnknownTradingError         BackendErrorCode = 1500
	HTTPInternalServerError     BackendErrorCode = 500
)

var codeNames = map[BackendErrorCode]string{
	None:                        "None",
	UnknownError:                "UnknownError",
	NotAuthorized:               "NotAuthorized",
	NeedAuthorizationCode:       "NeedAuthorizationCode",
	WrongAuthorizationCode:      "WrongAuthorizationCode",
	NeedCaptcha:                 "NeedCaptcha",
	NoNeedCaptcha:               "NoNeedCaptcha",
	CaptchaInvalidMaximumLength: "CaptchaInvalidMaximumLength",
	CaptchaFailed:               "CaptchaFailed",
	CaptchaBruteForced:          "CaptchaBruteForced",
	NoRoomInStash:               "NoRoomInStash",
	NicknameNotUnique:           "NicknameNotUnique",
	NicknameNotValid:            "NicknameNotValid",
	UnsupportedClientVersion:    "UnsupportedClientVersion",
	ReportNotAllowed:            "ReportNotAllowed",
	NicknameIsAbusive:           "NicknameIsAbusive",
	NicknameChangeTimeout:       "NicknameChangeTimeout",
	NotModified:                 "NotModified",
	HTTPBadRequest:              "HTTPBadRequest",
	HTTPNotAuthorized:           "HTTPNotAuthorized",
	HTTPForbidden:               "HTTPForbidden",
	HTTPNotFound:                "HTTPNotFound",
	HTTPMethodNotAllowed:        "HTTPMethodNotAllowed",
	UnknownTradingError:         "UnknownTradingError",
	HTTPInternalServerError:     "HTTPInternalServerError",
}

// String returns the symbolic name of the code.
func (c BackendErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "BackendErrorCode(" + strconv.Itoa(int(c)) + ")"
}
