// Package di provides the dependency injection container processors are
// constructed from.
package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/conneroisu/assemble/internal/config"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
)

// Names of the core services registered by Initialize.
const (
	ServiceConfig = "config"
	ServiceLogger = "logger"
	ServiceLoader = "loader"
)

// dependencyResolver is a wrapper around ServiceContainer that prevents deadlocks
type dependencyResolver struct {
	container *ServiceContainer
	resolving map[string]bool
}

// Get retrieves a service using the safe resolver
func (dr *dependencyResolver) Get(name string) (interface{}, error) {
	return dr.container.getWithResolver(name, dr.resolving)
}

// GetByType retrieves a service by type using the safe resolver
func (dr *dependencyResolver) GetByType(serviceType reflect.Type) (interface{}, error) {
	name, ok := dr.container.nameForType(serviceType)
	if !ok {
		return nil, fmt.Errorf("no service found for type %s", serviceType)
	}
	return dr.Get(name)
}

// ServiceContainer manages dependency injection for the application
type ServiceContainer struct {
	services    map[string]ServiceDefinition
	order       []string
	singletons  map[string]interface{}
	factories   map[string]FactoryFunc
	creating    map[string]*sync.WaitGroup // Track services being created
	mu          sync.RWMutex
	config      *config.Config
	initialized bool
}

// ServiceDefinition defines how a service should be created and managed
type ServiceDefinition struct {
	Name      string
	Type      reflect.Type
	Factory   FactoryFunc
	Singleton bool
	Tags      []string
}

// FactoryFunc creates a service instance using the dependency resolver
type FactoryFunc func(resolver DependencyResolver) (interface{}, error)

// DependencyResolver provides safe dependency resolution that prevents circular dependencies
type DependencyResolver interface {
	Get(name string) (interface{}, error)
	GetByType(serviceType reflect.Type) (interface{}, error)
}

// ServiceBuilder helps build service definitions
type ServiceBuilder struct {
	definition ServiceDefinition
	container  *ServiceContainer
}

// NewServiceContainer creates a new dependency injection container. A nil
// config is replaced by the defaults.
func NewServiceContainer(cfg *config.Config) *ServiceContainer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ServiceContainer{
		services:   make(map[string]ServiceDefinition),
		singletons: make(map[string]interface{}),
		factories:  make(map[string]FactoryFunc),
		creating:   make(map[string]*sync.WaitGroup),
		config:     cfg,
	}
}

// Register registers a service with the container
func (c *ServiceContainer) Register(name string, factory FactoryFunc) *ServiceBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	builder := &ServiceBuilder{
		definition: ServiceDefinition{
			Name:      name,
			Factory:   factory,
			Singleton: false,
			Tags:      make([]string, 0),
		},
		container: c,
	}

	c.store(builder.definition)
	c.factories[name] = factory

	return builder
}

// RegisterSingleton registers a singleton service
func (c *ServiceContainer) RegisterSingleton(name string, factory FactoryFunc) *ServiceBuilder {
	return c.Register(name, factory).AsSingleton()
}

// RegisterInstance registers an existing instance as a singleton
func (c *ServiceContainer) RegisterInstance(name string, instance interface{}) *ServiceBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.singletons[name] = instance
	definition := ServiceDefinition{
		Name:      name,
		Type:      reflect.TypeOf(instance),
		Singleton: true,
	}
	c.store(definition)

	return &ServiceBuilder{definition: definition, container: c}
}

// store records a definition, keeping first-registration order. Callers hold mu.
func (c *ServiceContainer) store(definition ServiceDefinition) {
	if _, exists := c.services[definition.Name]; !exists {
		c.order = append(c.order, definition.Name)
	}
	c.services[definition.Name] = definition
}

// Get retrieves a service from the container
func (c *ServiceContainer) Get(name string) (interface{}, error) {
	return c.getWithResolver(name, make(map[string]bool))
}

// getWithResolver retrieves a service with circular dependency detection
func (c *ServiceContainer) getWithResolver(
	name string,
	resolving map[string]bool,
) (interface{}, error) {
	if resolving[name] {
		return nil, fmt.Errorf("circular dependency detected for service '%s'", name)
	}

	c.mu.RLock()
	definition, exists := c.services[name]
	factory := c.factories[name]
	c.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("service '%s' not registered", name)
	}

	if definition.Singleton {
		c.mu.RLock()
		if instance, exists := c.singletons[name]; exists {
			c.mu.RUnlock()
			return instance, nil
		}

		// Another goroutine is creating this singleton
		if wg, creating := c.creating[name]; creating {
			c.mu.RUnlock()
			wg.Wait()
			return c.createdSingleton(name)
		}
		c.mu.RUnlock()

		c.mu.Lock()
		if instance, exists := c.singletons[name]; exists {
			c.mu.Unlock()
			return instance, nil
		}

		if wg, creating := c.creating[name]; creating {
			c.mu.Unlock()
			wg.Wait()
			return c.createdSingleton(name)
		}

		// Reserve creation
		wg := &sync.WaitGroup{}
		wg.Add(1)
		c.creating[name] = wg

		resolving[name] = true
		c.mu.Unlock()

		// Create without holding any locks
		instance, err := c.createInstanceSafely(factory, resolving)

		delete(resolving, name)

		c.mu.Lock()
		if err != nil {
			delete(c.creating, name)
			c.mu.Unlock()
			wg.Done()
			return nil, fmt.Errorf("failed to create singleton service '%s': %w", name, err)
		}

		c.singletons[name] = instance
		delete(c.creating, name)
		c.mu.Unlock()
		wg.Done()

		return instance, nil
	}

	resolving[name] = true
	instance, err := c.createInstanceSafely(factory, resolving)
	delete(resolving, name)

	if err != nil {
		return nil, fmt.Errorf("failed to create service '%s': %w", name, err)
	}

	return instance, nil
}

// createdSingleton returns a singleton another goroutine finished creating.
func (c *ServiceContainer) createdSingleton(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	instance, ok := c.singletons[name]
	if !ok {
		return nil, fmt.Errorf("failed to create singleton service '%s'", name)
	}
	return instance, nil
}

// createInstanceSafely creates an instance with dependency resolution
func (c *ServiceContainer) createInstanceSafely(
	factory FactoryFunc,
	resolving map[string]bool,
) (interface{}, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory is nil")
	}

	resolver := &dependencyResolver{
		container: c,
		resolving: resolving,
	}

	return factory(resolver)
}



// GetByType retrieves a service by its type. An exact type match wins;
// otherwise the first registered service assignable to the type is used.
func (c *ServiceContainer) GetByType(serviceType reflect.Type) (interface{}, error) {
	name, ok := c.nameForType(serviceType)
	if !ok {
		return nil, fmt.Errorf("no service found for type %s", serviceType)
	}
	return c.Get(name)
}

func (c *ServiceContainer) nameForType(serviceType reflect.Type) (string, bool) {
	if serviceType == nil {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, name := range c.order {
		if c.services[name].Type == serviceType {
			return name, true
		}
	}
	for _, name := range c.order {
		t := c.services[name].Type
		if t != nil && t.AssignableTo(serviceType) {
			return name, true
		}
	}
	return "", false
}

// GetByTag retrieves all services with a specific tag, in registration order
func (c *ServiceContainer) GetByTag(tag string) ([]interface{}, error) {
	var services []interface{}
	for _, serviceName := range c.namesForTag(tag) {
		service, err := c.Get(serviceName)
		if err != nil {
			return nil, err
		}
		services = append(services, service)
	}
	return services, nil
}

func (c *ServiceContainer) namesForTag(tag string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var names []string
	for _, name := range c.order {
		for _, defTag := range c.services[name].Tags {
			if defTag == tag {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// Initialize registers the core services: the config, a logger built from
// it and the module loader.
func (c *ServiceContainer) Initialize() error {
	if c.initialized {
		return nil
	}

	if err := c.registerCoreServices(); err != nil {
		return fmt.Errorf("failed to register core services: %w", err)
	}

	c.initialized = true
	return nil
}

func (c *ServiceContainer) registerCoreServices() error {
	c.RegisterInstance(ServiceConfig, c.config)

	loggerType := reflect.TypeOf((*logging.Logger)(nil)).Elem()
	c.RegisterSingleton(ServiceLogger, func(resolver DependencyResolver) (interface{}, error) {
		cfg, err := resolver.Get(ServiceConfig)
		if err != nil {
			return nil, err
		}
		loggerCfg, err := cfg.(*config.Config).LoggerConfig()
		if err != nil {
			return nil, err
		}
		var logger logging.Logger = logging.NewLogger(loggerCfg)
		return logger, nil
	}).WithType(loggerType)

	c.RegisterSingleton(ServiceLoader, func(resolver DependencyResolver) (interface{}, error) {
		logger, err := resolver.GetByType(loggerType)
		if err != nil {
			return nil, err
		}
		return module.NewLoader(nil, logger.(logging.Logger)), nil
	}).WithType(reflect.TypeOf((*module.Loader)(nil)))

	return nil
}

// Shutdown shuts down singletons in reverse registration order
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for i := len(c.order) - 1; i >= 0; i-- {
		serviceName := c.order[i]
		instance, exists := c.singletons[serviceName]
		if !exists {
			continue
		}
		if shutdownable, ok := instance.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdownable.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shutdown %s: %w", serviceName, err))
			}
		}
	}

	c.singletons = make(map[string]interface{})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	return nil
}

// ServiceBuilder methods for fluent interface

// AsSingleton marks the service as a singleton
func (sb *ServiceBuilder) AsSingleton() *ServiceBuilder {
	sb.definition.Singleton = true
	sb.updateContainer()
	return sb
}

// WithTag adds tags to the service
func (sb *ServiceBuilder) WithTag(tags ...string) *ServiceBuilder {
	sb.definition.Tags = append(sb.definition.Tags, tags...)
	sb.updateContainer()
	return sb
}

// WithType sets the service type
func (sb *ServiceBuilder) WithType(serviceType reflect.Type) *ServiceBuilder {
	sb.definition.Type = serviceType
	sb.updateContainer()
	return sb
}

func (sb *ServiceBuilder) updateContainer() {
	sb.container.mu.Lock()
	sb.container.store(sb.definition)
	sb.container.mu.Unlock()
}

// Convenience methods for typed service retrieval

// GetConfig retrieves the configuration
func (c *ServiceContainer) GetConfig() (*config.Config, error) {
	service, err := c.Get(ServiceConfig)
	if err != nil {
		return nil, err
	}
	return service.(*config.Config), nil
}

// GetLogger retrieves the logger
func (c *ServiceContainer) GetLogger() (logging.Logger, error) {
	service, err := c.Get(ServiceLogger)
	if err != nil {
		return nil, err
	}
	return service.(logging.Logger), nil
}

// GetLoader retrieves the module loader
func (c *ServiceContainer) GetLoader() (*module.Loader, error) {
	service, err := c.Get(ServiceLoader)
	if err != nil {
		return nil, err
	}
	return service.(*module.Loader), nil
}

// ListServices returns the registered service names in registration order
func (c *ServiceContainer) ListServices() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	services := make([]string, len(c.order))
	copy(services, c.order)
	return services
}
