package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/kohaven/medley/pkg/docker"
)

// InitialiseDockerDatabase spawns a PostgreSQL container for Medley to use,
// for users who have not pointed Medley at an existing database install. The
// data directory is bind-mounted in to the users home directory so the
// catalog survives container recreation.
func InitialiseDockerDatabase(dockerManager docker.DockerManager, config DatabaseConfig, crashHandler func(error)) (docker.DockerContainer, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot initialise docker db volume mount as cannot find user home dir: %s", err.Error())
	}

	dbDataPath := filepath.Join(homeDir, "medley_db.dat")
	if err := os.MkdirAll(dbDataPath, os.ModeDir|os.ModePerm); err != nil {
		return nil, err
	}

	containerConfig := &container.Config{
		Image: "postgres:14.1-alpine",
		Env: []string{
			fmt.Sprintf("POSTGRES_PASSWORD=%s", config.Password),
			fmt.Sprintf("POSTGRES_USER=%s", config.User),
			fmt.Sprintf("POSTGRES_DB=%s", config.Name),
			fmt.Sprintf("DATABASE_HOST=%s", config.Host),
		},
		ExposedPorts: nat.PortSet{
			"5432": struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(config.Port): []nat.PortBinding{{
				HostIP:   config.Host,
				HostPort: config.Port,
			}},
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dbDataPath,
				Target: "/var/lib/postgresql/data",
			},
		},
	}

	db := docker.NewDockerContainer("db", "postgres:14.1-alpine", containerConfig, hostConfig)
	if err := dockerManager.SpawnContainer(db); err != nil {
		return nil, err
	}

	// Watch for container crash (teardown)
	go func() {
		st, err := dockerManager.WaitForContainer(db, docker.CRASHED)
		if st != docker.CRASHED || err != nil {
			return
		}

		crashHandler(fmt.Errorf("container %s has crashed", db))
	}()

	return db, nil
}

// InitialiseDockerPgAdmin spawns a pgAdmin container pointed at the embedded
// database, exposed on host port 5050.
func InitialiseDockerPgAdmin(dockerManager docker.DockerManager, crashHandler func(error)) (docker.DockerContainer, error) {
	containerConfig := &container.Config{
		Image: "dpage/pgadmin4",
		Env: []string{
			"PGADMIN_DEFAULT_EMAIL=admin@admin.com",
			"PGADMIN_DEFAULT_PASSWORD=root",
		},
		ExposedPorts: nat.PortSet{
			"80": struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"80": []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: "5050",
			}},
		},
	}

	pgAdmin := docker.NewDockerContainer("pgAdmin", "dpage/pgadmin4", containerConfig, hostConfig)
	if err := dockerManager.SpawnContainer(pgAdmin); err != nil {
		return nil, err
	}

	// Watch for container crash (teardown)
	go func() {
		st, err := dockerManager.WaitForContainer(pgAdmin, docker.CRASHED)
		if st != docker.CRASHED || err != nil {
			return
		}

		crashHandler(fmt.Errorf("container %s has crashed", pgAdmin))
	}()

	return pgAdmin, nil
}
