// Copyright 2024 The ManLab Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhoisReferralParsesReferField(t *testing.T) {
	resp := "% IANA WHOIS server\nrefer:        whois.verisign-grs.com\ndomain:       COM\n"
	assert.Equal(t, "whois.verisign-grs.com", whoisReferral(resp))
}

func TestWhoisReferralParsesReferralServerField(t *testing.T) {
	resp := "ReferralServer: whois://whois.example-registry.net\n"
	assert.Equal(t, "whois.example-registry.net", whoisReferral(resp))
}

func TestWhoisReferralReturnsEmptyWhenAuthoritative(t *testing.T) {
	resp := "Domain Name: EXAMPLE.COM\nRegistrar: Example Registrar\n"
	assert.Equal(t, "", whoisReferral(resp))
}
