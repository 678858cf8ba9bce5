// Package config loads the server's http.json.
//
// Values missing from the file keep their defaults, so an empty object is a
// valid configuration.
//
// # Configuration File Structure
//
//	{
//	  "ip": "0.0.0.0",
//	  "port": 6969,
//	  "tls": {"certFile": "cert.pem", "keyFile": "key.pem"},
//	  "logLevel": "info",
//	  "logFormat": "json",
//	  "release": true,
//	  "maxBodySize": 33554432,
//	  "metricsPath": "/metrics",
//	  "notifier": {
//	    "keepalive": "90s",
//	    "pollTimeout": "30s",
//	    "messagesPerSecond": 10,
//	    "burst": 20
//	  },
//	  "activity": {"backend": "redis", "redisAddr": "127.0.0.1:6379", "ttl": "24h"},
//	  "files": {"backend": "s3", "bucket": "spt-files", "prefix": "files/", "region": "eu-west-1"}
//	}
//
// # Usage
//
//	cfg, err := config.LoadFile("http.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
