// Package discovery announces a running tag scheduler over mDNS.
//
// The service type is _tagsched._tcp in the local domain. TXT records carry
// the number of tags served and the software version:
//
//	tags=128
//	version=0.3.0
//	name=plant-a
package discovery
