// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ilp

// ErrorCode is the three-character code carried by a Reject packet. Final
// errors (F) must not be retried, temporary errors (T) may be retried, and
// relative errors (R) indicate a timing problem that may resolve with a
// larger expiry window.
type ErrorCode string

const (
	CodeBadRequest            ErrorCode = "F00"
	CodeInvalidPacket         ErrorCode = "F01"
	CodeUnreachable           ErrorCode = "F02"
	CodeInvalidAmount         ErrorCode = "F03"
	CodeWrongCondition        ErrorCode = "F05"
	CodeAmountTooLarge        ErrorCode = "F08"
	CodeTransferTimedOut      ErrorCode = "R00"
	CodeInsufficientTimeout   ErrorCode = "R02"
	CodeInternalError         ErrorCode = "T00"
	CodePeerUnreachable       ErrorCode = "T01"
	CodeConnectorBusy         ErrorCode = "T03"
	CodeInsufficientLiquidity ErrorCode = "T04"
)

// NewReject builds a Reject triggered by the given connector address.
func NewReject(code ErrorCode, message string, triggeredBy Address) *Reject {
	return &Reject{
		Code:        code,
		Message:     message,
		TriggeredBy: triggeredBy,
	}
}
