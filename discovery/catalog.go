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

package discovery

// CommonTypes is the set of mDNS/DNS-SD service types scanned on every
// run: the device classes a home or small-office network is most
// likely to actually have.
var CommonTypes = []string{
	"_http._tcp",
	"_https._tcp",
	"_ssh._tcp",
	"_sftp-ssh._tcp",
	"_airplay._tcp",
	"_raop._tcp",
	"_googlecast._tcp",
	"_spotify-connect._tcp",
	"_printer._tcp",
	"_ipp._tcp",
	"_ipps._tcp",
	"_pdl-datastream._tcp",
	"_scanner._tcp",
	"_smb._tcp",
	"_afpovertcp._tcp",
	"_nfs._tcp",
	"_workstation._tcp",
	"_device-info._tcp",
	"_homekit._tcp",
	"_hap._tcp",
	"_matter._tcp",
	"_hue._tcp",
}

// ExtendedTypes rounds the catalog out to about 110 well-known
// types, covering less common but still frequently-seen services:
// media servers, home automation hubs, NAS appliances, and developer
// tooling that advertises itself over mDNS.
var ExtendedTypes = []string{
	"_daap._tcp",
	"_dacp._tcp",
	"_touch-able._tcp",
	"_sonos._tcp",
	"_soundtouch._tcp",
	"_roku-rcp._tcp",
	"_amzn-wplay._tcp",
	"_nvstream._tcp",
	"_steam-in-home-streaming._tcp",
	"_rfb._tcp",
	"_vnc._tcp",
	"_teamviewer._tcp",
	"_rdp._tcp",
	"_rdlink._tcp",
	"_ldap._tcp",
	"_ldaps._tcp",
	"_kerberos._tcp",
	"_kerberos-adm._tcp",
	"_kpasswd._tcp",
	"_ntp._udp",
	"_dns-sd._udp",
	"_domain._tcp",
	"_dhcp._udp",
	"_tftp._udp",
	"_syslog._udp",
	"_snmp._udp",
	"_telnet._tcp",
	"_ftp._tcp",
	"_ftps._tcp",
	"_webdav._tcp",
	"_webdavs._tcp",
	"_caldav._tcp",
	"_caldavs._tcp",
	"_carddav._tcp",
	"_carddavs._tcp",
	"_imap._tcp",
	"_imaps._tcp",
	"_pop3._tcp",
	"_pop3s._tcp",
	"_smtp._tcp",
	"_submission._tcp",
	"_presence._tcp",
	"_xmpp-client._tcp",
	"_xmpp-server._tcp",
	"_sip._tcp",
	"_sips._tcp",
	"_sip._udp",
	"_h323cs._tcp",
	"_nvm._tcp",
	"_appletv-v2._tcp",
	"_appletv-pair._tcp",
	"_companion-link._tcp",
	"_mediaremotetv._tcp",
	"_nut._tcp",
	"_octoprint._tcp",
	"_plugwise._tcp",
	"_zigbee._tcp",
	"_zwave._tcp",
	"_mqtt._tcp",
	"_coap._udp",
	"_homeassistant._tcp",
	"_home-assistant._tcp",
	"_esphomelib._tcp",
	"_shelly._tcp",
	"_tuya._tcp",
	"_wemo._tcp",
	"_elgato._tcp",
	"_touch-remote._tcp",
	"_itunes-remote._tcp",
	"_miio._udp",
	"_bose._tcp",
	"_heos-audio._tcp",
	"_nas._tcp",
	"_time-machine._tcp",
	"_backup._tcp",
	"_adisk._tcp",
	"_readynas._tcp",
	"_plex._tcp",
	"_plexmediasvr._tcp",
	"_jenkins._tcp",
	"_docker._tcp",
	"_kubernetes._tcp",
	"_etcd-server._tcp",
	"_consul._tcp",
	"_nomad._tcp",
	"_grafana._tcp",
	"_prometheus-http._tcp",
	"_minecraft._tcp",
	"_gamemaster._tcp",
}

// AllTypes returns the combined mDNS service-type catalog, CommonTypes
// first, for callers that want a single scan list.
func AllTypes() []string {
	out := make([]string, 0, len(CommonTypes)+len(ExtendedTypes))
	out = append(out, CommonTypes...)
	out = append(out, ExtendedTypes...)
	return out
}
