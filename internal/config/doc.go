// Package config loads, normalizes, and validates comfyctl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as COMFY_SERVER. The Config type centralizes every
// knob the CLI needs: the server address, the workflow template and the node
// titles bound per job, tracker policy, state directories, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
