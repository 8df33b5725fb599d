/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nm

import "errors"

var (
	ErrEngineClosed     = errors.New("network manager model is closed")
	ErrClientRequired   = errors.New("bus client is required")
	ErrNoSettings       = errors.New("object has no connection settings")
	ErrUpdateFailed     = errors.New("settings update failed")
	ErrSubscribeFailed  = errors.New("failed to subscribe to bus events")
	ErrActivateFailed   = errors.New("connection activation failed")
	ErrDeactivateFailed = errors.New("connection deactivation failed")
	ErrUnexpectedReply  = errors.New("unexpected reply from remote service")
)
