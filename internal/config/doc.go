// Package config provides configuration for the persist command.
//
// The configuration is stored in persist.json and every field can be
// overridden from the environment.
//
// # Configuration File Structure
//
//	{
//	  "dir": ".persist",
//	  "origin": "http://localhost",
//	  "quota": 5242880,
//	  "database": {
//	    "name": "persist",
//	    "store": "persist"
//	  },
//	  "inspect": {
//	    "addr": "localhost:7340"
//	  },
//	  "log": {
//	    "level": "info"
//	  }
//	}
//
// # Environment
//
//	PERSIST_DIR, PERSIST_ORIGIN, PERSIST_QUOTA, PERSIST_DB_NAME,
//	PERSIST_DB_STORE, PERSIST_INSPECT_ADDR, PERSIST_LOG_LEVEL
//
// # Usage
//
//	cfg, err := config.Resolve("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Data directory:", cfg.DirPath())
package config
