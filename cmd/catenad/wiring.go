package main

import "net/url"

func parseSeedURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}
